// Command atrium is the self-hosted reverse-proxy and access gateway.
package main

import "github.com/nicolaspernoud/atrium/internal/atriumcmd"

func main() {
	atriumcmd.Main()
}
