// Command chordclient disseminates a single value into the gossip
// layer of a running ring: it connects to one node, writes an
// UPDATE_DATA request, and exits without waiting for a response — the
// same fire-and-forget shape the original client used.
package main

import (
	"fmt"
	"net"
	"os"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: chordclient <remote-addr> <data>")
		os.Exit(1)
	}

	remoteAddr, err := net.ResolveTCPAddr("tcp", os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid remote node address")
		os.Exit(1)
	}
	data := os.Args[2]

	conn, err := net.DialTCP("tcp", nil, remoteAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer conn.Close()

	requestMsg := fmt.Sprintf("UPDATE_DATA=[%s];", data)
	if _, err := conn.Write([]byte(requestMsg)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
