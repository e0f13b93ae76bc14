// Package wren implements an embeddable SMTP protocol engine (RFC 5321).
//
// The engine accepts TCP connections, runs the ESMTP conversation
// (HELO/EHLO, MAIL, RCPT, DATA, STARTTLS, AUTH and friends), enforces
// framing and command sequencing, and hands accepted messages to
// application-supplied collaborators. It performs no queueing, relaying
// or mailbox storage of its own; what happens to a message after DATA
// is entirely up to the delivery Handler the application provides.
//
// A minimal server:
//
//	srv, err := wren.NewServer(wren.Config{
//		Hostname: "mx.example.com",
//		Addr:     ":2525",
//		Delivery: myFactory,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	log.Fatal(srv.ListenAndServe())
package wren

// Version is the library version, reported in the greeting banner and
// the Received trace header.
const Version = "0.3.0"

// DefaultSoftwareName identifies the engine when Config.SoftwareName is
// left empty.
const DefaultSoftwareName = "wren/" + Version
