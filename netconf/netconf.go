// Package netconf is the root of a NETCONF client.
//
// The Network Configuration Protocol (NETCONF) provides mechanisms to
// install, manipulate, and delete the configuration of network devices.
// It uses an XML-based data encoding for the configuration data as well
// as the protocol messages. The protocol operations are realized as
// remote procedure calls (RPCs).
//
// The client subpackage establishes sessions over SSH, telnet or a serial
// console, negotiates the protocol version and dispatches RPCs. The rpc
// subpackage builds requests, the ops subpackage layers the standard
// operations on a session and testserver provides an in-process server
// for tests.
package netconf
