// Command chordnode runs a single Chord ring member: it either
// initializes a brand-new ring or joins an existing one through a
// known remote node, then serves Chord and gossip requests while
// running the background stabilization loops.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chordring/overlay/internal/bootstrap"
	"github.com/chordring/overlay/internal/diagnostics"
	"github.com/chordring/overlay/internal/handler"
	"github.com/chordring/overlay/internal/protocol"
	"github.com/chordring/overlay/internal/routingstate"
	"github.com/chordring/overlay/internal/server"
	"github.com/chordring/overlay/internal/stabilizer"
	"github.com/chordring/overlay/internal/transport"
)

var (
	selfPort       int
	publicAddrFlag string
	remoteAddrFlag string
	diagAddrFlag   string
)

// keyValueArg matches the bare `key=value` tokens spec.md's CLI
// section documents (`self-port=1400`, `public-addr=127.0.0.1:1400`,
// ...), with no leading dashes of their own.
var keyValueArg = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*=`)

// splitKeyValueArgs rewrites spec.md's bare `key=value` CLI vocabulary
// into the long-flag form cobra expects (`--key=value`), leaving
// subcommand names and anything already flag-shaped untouched. This
// is the translation layer between the documented external interface
// and cobra's flag parser.
func splitKeyValueArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if keyValueArg.MatchString(a) {
			out = append(out, "--"+a)
		} else {
			out = append(out, a)
		}
	}
	return out
}

func main() {
	root := rootCmd()
	root.SetArgs(splitKeyValueArgs(os.Args[1:]))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chordnode",
		Short: "Run a Chord ring node with gossip dissemination",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a brand-new ring with this node as its sole member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), nil)
		},
	}
	initCmd.Flags().IntVar(&selfPort, "self-port", 0, "local TCP port to listen on")
	initCmd.Flags().StringVar(&publicAddrFlag, "public-addr", "", "address other nodes use to reach this one")
	initCmd.Flags().StringVar(&diagAddrFlag, "diagnostics-addr", "127.0.0.1:0", "HTTP address for the diagnostics server")
	initCmd.MarkFlagRequired("self-port")
	initCmd.MarkFlagRequired("public-addr")

	joinCmd := &cobra.Command{
		Use:   "join",
		Short: "Join an existing ring through a known remote node",
		RunE: func(cmd *cobra.Command, args []string) error {
			remoteAddr, err := net.ResolveTCPAddr("tcp", remoteAddrFlag)
			if err != nil {
				return fmt.Errorf("remote-addr argument is missing or invalid")
			}
			return run(cmd.Context(), remoteAddr)
		},
	}
	joinCmd.Flags().IntVar(&selfPort, "self-port", 0, "local TCP port to listen on")
	joinCmd.Flags().StringVar(&publicAddrFlag, "public-addr", "", "address other nodes use to reach this one")
	joinCmd.Flags().StringVar(&remoteAddrFlag, "remote-addr", "", "address of an existing ring member")
	joinCmd.Flags().StringVar(&diagAddrFlag, "diagnostics-addr", "127.0.0.1:0", "HTTP address for the diagnostics server")
	joinCmd.MarkFlagRequired("self-port")
	joinCmd.MarkFlagRequired("public-addr")
	joinCmd.MarkFlagRequired("remote-addr")

	root.AddCommand(initCmd, joinCmd)
	return root
}

func run(ctx context.Context, remoteAddr *net.TCPAddr) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	publicAddr, err := net.ResolveTCPAddr("tcp", publicAddrFlag)
	if err != nil {
		return fmt.Errorf("public-addr argument is missing or invalid")
	}

	listener, err := net.ListenTCP("tcp", &net.TCPAddr{Port: selfPort})
	if err != nil {
		return fmt.Errorf("cannot establish a TCP local listener: %w", err)
	}

	self := routingstate.NewNode(publicAddr)

	if err := bootstrap.VerifyPublicAddr(publicAddr, listener); err != nil {
		listener.Close()
		return fmt.Errorf("the assigned public socket address does not correspond to the current node: %w", err)
	}

	dialer := &transport.Dialer{Logger: logger}

	var result bootstrap.Result
	if remoteAddr == nil {
		result = bootstrap.Init(self)
	} else {
		result, err = bootstrap.Join(self, remoteAddr, dialer)
		if err != nil {
			listener.Close()
			return err
		}
	}

	successorList := routingstate.NewSuccessorListCell(self)
	successorList.Commit(result.SuccessorList)

	fingerTable := routingstate.NewFingerTableCell(self)
	for i, n := range result.FingerTable {
		if n != nil {
			fingerTable.Set(i, *n)
		}
	}

	predecessor := &routingstate.PredecessorCell{}
	gossipState := &routingstate.GossipCell{}

	logger.Info("node is running successfully", zap.Stringer("self", publicAddr))

	registry := prometheus.NewRegistry()
	metrics := diagnostics.NewMetrics(registry)

	chordHandler := &handler.Chord{
		Self:          self,
		SuccessorList: successorList,
		FingerTable:   fingerTable,
		Predecessor:   predecessor,
		Dialer:        dialer,
		Logger:        logger,
		Metrics:       metrics,
	}
	gossipHandler := &handler.Gossip{State: gossipState, Metrics: metrics}
	dispatcher := &handler.Dispatcher{Chord: chordHandler, Gossip: gossipHandler, Logger: logger}

	srv := server.New(listener, dispatcher, logger)

	sup := &stabilizer.Supervisor{
		Self:          self,
		SuccessorList: successorList,
		FingerTable:   fingerTable,
		Predecessor:   predecessor,
		Gossip:        gossipState,
		Dialer:        dialer,
		Logger:        logger,
		Metrics:       metrics,
	}

	source := nodeSnapshotSource{
		self:          self,
		predecessor:   predecessor,
		successorList: successorList,
		gossip:        gossipState,
	}

	diagHandler := diagnostics.NewHandler(source, metrics)
	diagHandler.Prober = func(addr *net.TCPAddr) bool {
		return dialer.CheckRemoteNode(addr).Kind == protocol.RespActive
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	diagHandler.Register(engine)

	diagListener, err := net.Listen("tcp", diagAddrFlag)
	if err != nil {
		listener.Close()
		return fmt.Errorf("cannot establish a diagnostics listener: %w", err)
	}
	logger.Info("diagnostics server listening", zap.Stringer("addr", diagListener.Addr()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("shutdown signal received, gracefully shutting down")
			cancel()
			srv.Close()
			diagListener.Close()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Unblock both accept loops once the group is canceled, so a
		// fatal error from any member lets g.Wait return it.
		<-gctx.Done()
		srv.Close()
		diagListener.Close()
		return nil
	})
	g.Go(func() error { return sup.Run(gctx) })
	g.Go(func() error {
		diagnostics.RunPrinter(gctx, source, logger)
		return nil
	})
	g.Go(func() error {
		if err := (&http.Server{Handler: engine}).Serve(diagListener); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := srv.Serve(); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})

	return g.Wait()
}

type nodeSnapshotSource struct {
	self          routingstate.Node
	predecessor   *routingstate.PredecessorCell
	successorList *routingstate.SuccessorListCell
	gossip        *routingstate.GossipCell
}

func (s nodeSnapshotSource) Snapshot() diagnostics.Snapshot {
	return diagnostics.Snapshot{
		Self:          s.self,
		Predecessor:   s.predecessor.Snapshot(),
		SuccessorList: s.successorList.Snapshot(),
		Gossip:        s.gossip.Snapshot(),
	}
}
