// Command cm curates a feedback-weighted playbook of rules for coding agents.
package main

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	Execute()
}
