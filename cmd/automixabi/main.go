// Command automixabi builds the mixer engine as a C shared library:
//
//	go build -buildmode=c-shared -o libautomix.so ./cmd/automixabi
//
// All of the exported C symbols live in pkg/abi; this package only exists
// because cgo's c-shared build mode requires a main package to link.
package main

import (
	_ "github.com/go-automix/automix/pkg/abi"
)

func main() {}
