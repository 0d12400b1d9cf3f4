// Package rpc builds NETCONF RPC requests.
//
// Any operation name is accepted: an invocation name written with
// underscores is translated to the hyphenated XML element name
// (get_chassis_inventory becomes <get-chassis-inventory/>), and the
// operation content is produced either declaratively from ordered
// parameters or imperatively from a pre-built, reusable Fragment.
package rpc
