// Package client is a Go client for the acl-gateway HTTP API.
//
// A Client logs in by signing a timestamped challenge with a secp256k1 key;
// the gateway answers with a bearer token that authenticates every later
// call as that key's identity:
//
//	c := client.New("http://127.0.0.1:8420")
//	if _, err := c.Login(ctx, key); err != nil {
//	    return err
//	}
//	d, err := c.Deploy(ctx, "Coven Token", "CVN")
//
// Non-2xx responses come back as *APIError; IsStatus checks the code.
package client
