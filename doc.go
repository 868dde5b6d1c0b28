/*
Package main is the CLI of the Findy credential exchange core. The core
implements connections between agents and the claim issuing and proof
presentation protocols on top of them. The Go API for applications is in the
cxs package, where every protocol object is referred with a handle and every
command completes through a callback.

The CLI has the following commands:

	findy-cxs key create     creates a wallet key
	findy-cxs demo           runs issuer and holder agents in one process
	findy-cxs serve          runs one agent behind the HTTP endpoint
	findy-cxs version        prints the version

Flags can be given also as environment variables with the FCXS prefix, e.g.
FCXS_SERVE_LABEL, or in the configuration file given with --config.
*/
package main
