package main

import (
	"reflect"
	"testing"
)

func TestSplitKeyValueArgs(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "init with bare key=value tokens",
			in:   []string{"init", "self-port=1400", "public-addr=127.0.0.1:1400"},
			want: []string{"init", "--self-port=1400", "--public-addr=127.0.0.1:1400"},
		},
		{
			name: "join with remote-addr",
			in:   []string{"join", "self-port=1401", "public-addr=127.0.0.1:1401", "remote-addr=127.0.0.1:1400"},
			want: []string{"join", "--self-port=1401", "--public-addr=127.0.0.1:1401", "--remote-addr=127.0.0.1:1400"},
		},
		{
			name: "already flag-shaped args pass through untouched",
			in:   []string{"init", "--self-port=1400", "-h"},
			want: []string{"init", "--self-port=1400", "-h"},
		},
		{
			name: "ipv6 value containing colons and brackets",
			in:   []string{"init", "public-addr=[::1]:1400"},
			want: []string{"init", "--public-addr=[::1]:1400"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitKeyValueArgs(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("splitKeyValueArgs(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
