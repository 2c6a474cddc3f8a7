// Package protocol provides the handshake drivers that classify a service
// listening on an open port.
//
// Each driver implements Driver and opens a real client session with the
// protocol's own library, so a port held by a different protocol fails the
// way it would for a real client. Drivers map the session's result onto a
// model.Outcome:
//
//   - MongoDB (port 27017): session via go.mongodb.org/mongo-driver, then an
//     auth-gated command. Protocol mismatch is detected; by default the
//     driver writes one notice document into an exposed server.
//   - Redis (port 6379): session via github.com/redis/go-redis/v9, PING, and
//     a clean QUIT. A different protocol on the port is reported the same
//     way as an instance that enforces authentication.
//
// # Usage
//
//	driver := protocol.NewRedisDriver(
//	    protocol.WithTimeout(time.Second),
//	    protocol.WithDialer(dialer),
//	)
//	outcome := driver.Handshake(ctx, "10.0.0.5", 6379)
//
// # Side effects
//
// The MongoDB notice write mutates the target. Disable it with
// WithNotice(false); listDatabases is then used to test authorization.
package protocol
