package server

import (
	"fmt"

	"stellarcore/internal/transport"
)

// Authenticator gates CONNECT handling (spec.md §1: "authentication
// beyond the pluggable trust-on-connect hook" is a non-goal, which
// means the hook itself is in scope). Deployments that want a real gate
// swap their own implementation in here; the core ships only the
// trust-on-connect default since the wire protocol carries no
// credential to check.
type Authenticator interface {
	// Authenticate inspects a connect event's username/version and
	// returns an error to reject it. The default implementation rejects
	// only an empty username — version mismatch and server-full are
	// handled separately by the orchestrator.
	Authenticate(username, version string) error
}

// TrustOnConnect is spec.md §1's default: any CONNECT with a
// well-formed username is accepted, matching the teacher's lack of any
// login gate for federation handshakes once a peer is known.
type TrustOnConnect struct{}

func (TrustOnConnect) Authenticate(username, version string) error {
	if username == "" {
		return fmt.Errorf("server: empty username")
	}
	return nil
}

// versionCompatible is a placeholder exact-match check; spec.md §4.9
// calls for "reject-if-incompatible-version" but leaves the
// compatibility rule unspecified, so StellarCore takes the simplest
// reading: the client's reported version must equal the server's.
func versionCompatible(serverVersion, clientVersion string) bool {
	return serverVersion == clientVersion
}

// rejectReasonFor maps an auth/version failure onto the wire-level
// disconnect reason the transport layer understands.
func rejectReasonFor(versionMismatch bool) transport.DisconnectReason {
	if versionMismatch {
		return transport.ReasonVersionMismatch
	}
	return transport.ReasonServerFull
}
