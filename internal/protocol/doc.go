// Package protocol defines the chat wire format: commands sent by clients,
// events sent by the server, and a codec that frames one JSON object per line.
//
// Commands:
//
//	{"Join":{"chat_name":"lobby"}}
//	{"Leave":{"chat_name":"lobby"}}
//	{"Post":{"chat_name":"lobby","message":"hi"}}
//
// Events:
//
//	{"Message":{"chat_name":"lobby","message":"hi"}}
//	{"Error":"You are not in lobby"}
package protocol
