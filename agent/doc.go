/*
Package agent holds the building blocks of the agent which the cxs API
drives. The cloud.Agent is the most important abstraction: it owns the wallet,
the DIDs, the ledger client and the transport, and it routes the inbound
messages to the protocol state machines.

The agent package is empty itself. All the functionality is inside
sub-packages:

	anoncreds  claim signing and proof verification collaborator
	async      command results, futures and exactly once callbacks
	bus        state change notifications for the application
	cloud      the agent: DIDs, routing, send and receive
	cxserr     the error codes of the API
	didcomm    message header and the envelope of the messages
	handle     generation checked handle registries
	ledger     ledger client, cache and the in-process ledger
	pltype     message types of the protocols
	sec        pipe which packs and unpacks messages between two DIDs
	ssi        DID and its keys
	trans      HTTP and in-process transports and the inbound server
	utils      settings, nonces and other helpers
	wallet     pluggable secure storage
*/
package agent
