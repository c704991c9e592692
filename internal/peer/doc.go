// Package peer replicates documents between processes.
//
// Peers speak JSON-RPC 2.0 over TCP. After a peer/hello exchange each side
// announces the heads of every document it has open. A heads announcement
// tells the receiver which changes the sender lacks; the receiver pushes
// them with doc/changes and, if the announcement names changes it does not
// have, announces its own heads back so the sender pushes those. Every later
// local change is pushed to the peers that share the document.
//
// A Node also implements repo.Finder: documents a repo cannot find locally
// are requested from connected peers with doc/request.
package peer
