/*
Package protocol is the parent of the protocol state machines. The connection
package runs the DID exchange, issuecredential has the issuer and holder sides
of the claim issuing, presentproof has the verifier and prover sides of the
proof presentation, and schema has the ledger objects the claims are built on.
The wire messages of the protocols are in the std package.
*/
package protocol
