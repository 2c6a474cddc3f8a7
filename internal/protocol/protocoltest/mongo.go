package protocoltest

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
	"go.mongodb.org/mongo-driver/x/mongo/driver/wiremessage"
)

// maxMongoMessage caps the size of a client message the fake accepts.
const maxMongoMessage = 16 << 20

// FakeMongo is a minimal MongoDB server speaking OP_QUERY for the opening
// hello and OP_MSG afterwards. It answers the hello, ping, insert,
// listDatabases and endSessions commands the Go driver sends.
type FakeMongo struct {
	requireAuth bool

	// Port is the port the server listens on.
	Port uint16

	// Active counts connections that are still open.
	Active atomic.Int32

	// Inserts counts insert commands that succeeded.
	Inserts atomic.Int32

	// ListDatabases counts listDatabases commands that succeeded.
	ListDatabases atomic.Int32

	mu      sync.Mutex
	written []InsertedDocument
}

// InsertedDocument is one document accepted by FakeMongo.
type InsertedDocument struct {
	// Namespace is "database.collection".
	Namespace string

	// Document is the raw BSON document.
	Document bson.Raw
}

// StartFakeMongo starts a fake MongoDB server on a random local port.
// With requireAuth, insert and listDatabases fail with Unauthorized.
func StartFakeMongo(t *testing.T, requireAuth bool) *FakeMongo {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	f := &FakeMongo{
		requireAuth: requireAuth,
		Port:        uint16(ln.Addr().(*net.TCPAddr).Port), //nolint:gosec // ephemeral port fits in uint16
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			f.Active.Add(1)
			go f.serve(conn)
		}
	}()

	return f
}

// Written returns the documents accepted so far.
func (f *FakeMongo) Written() []InsertedDocument {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]InsertedDocument(nil), f.written...)
}

func (f *FakeMongo) serve(conn net.Conn) {
	defer f.Active.Add(-1)
	defer conn.Close()

	for {
		msg, err := readMongoMessage(conn)
		if err != nil {
			return
		}

		_, requestID, _, opcode, body, ok := wiremessage.ReadHeader(msg)
		if !ok {
			return
		}

		var reply []byte
		switch opcode {
		case wiremessage.OpQuery: //nolint:staticcheck // the driver opens every connection with a legacy hello
			db, cmd, err := parseQuery(body)
			if err != nil {
				return
			}
			reply = opReply(requestID, f.handle(db, cmd, nil))
		case wiremessage.OpMsg:
			cmd, docs, err := parseMsg(body)
			if err != nil {
				return
			}
			db, _ := cmd.Lookup("$db").StringValueOK()
			reply = opMsg(requestID, f.handle(db, cmd, docs))
		default:
			return
		}

		if _, err := conn.Write(reply); err != nil {
			return
		}
	}
}

// handle runs one command and returns the reply document.
func (f *FakeMongo) handle(db string, cmd bsoncore.Document, docs []bsoncore.Document) []byte {
	first, err := cmd.IndexErr(0)
	if err != nil {
		return mustMarshal(commandError(9, "FailedToParse", "empty command"))
	}

	switch strings.ToLower(first.Key()) {
	case "hello", "ismaster":
		return mustMarshal(bson.D{
			{Key: "helloOk", Value: true},
			{Key: "ismaster", Value: true},
			{Key: "isWritablePrimary", Value: true},
			{Key: "maxBsonObjectSize", Value: int32(16 << 20)},
			{Key: "maxMessageSizeBytes", Value: int32(48000000)},
			{Key: "maxWriteBatchSize", Value: int32(100000)},
			{Key: "localTime", Value: primitive.NewDateTimeFromTime(time.Now())},
			{Key: "logicalSessionTimeoutMinutes", Value: int32(30)},
			{Key: "connectionId", Value: int32(1)},
			{Key: "minWireVersion", Value: int32(0)},
			{Key: "maxWireVersion", Value: int32(17)},
			{Key: "readOnly", Value: false},
			{Key: "ok", Value: 1.0},
		})
	case "insert":
		if f.requireAuth {
			return mustMarshal(unauthorized("insert"))
		}
		coll, _ := first.Value().StringValueOK()
		f.mu.Lock()
		for _, doc := range docs {
			f.written = append(f.written, InsertedDocument{
				Namespace: db + "." + coll,
				Document:  bson.Raw(doc),
			})
		}
		f.mu.Unlock()
		f.Inserts.Add(1)
		return mustMarshal(bson.D{{Key: "n", Value: int32(len(docs))}, {Key: "ok", Value: 1.0}})
	case "listdatabases":
		if f.requireAuth {
			return mustMarshal(unauthorized("listDatabases"))
		}
		f.ListDatabases.Add(1)
		return mustMarshal(bson.D{
			{Key: "databases", Value: bson.A{
				bson.D{{Key: "name", Value: "admin"}, {Key: "sizeOnDisk", Value: int64(40960)}, {Key: "empty", Value: false}},
			}},
			{Key: "totalSize", Value: int64(40960)},
			{Key: "ok", Value: 1.0},
		})
	case "ping", "endsessions":
		return mustMarshal(bson.D{{Key: "ok", Value: 1.0}})
	default:
		return mustMarshal(commandError(59, "CommandNotFound", "no such command: '"+first.Key()+"'"))
	}
}

func unauthorized(command string) bson.D {
	return commandError(13, "Unauthorized", "command "+command+" requires authentication")
}

func commandError(code int32, name, msg string) bson.D {
	return bson.D{
		{Key: "ok", Value: 0.0},
		{Key: "errmsg", Value: msg},
		{Key: "code", Value: code},
		{Key: "codeName", Value: name},
	}
}

func mustMarshal(doc bson.D) []byte {
	b, err := bson.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return b
}

// readMongoMessage reads one length-prefixed wire message.
func readMongoMessage(r io.Reader) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(size[:])
	if length < 16 || length > maxMongoMessage {
		return nil, errors.New("invalid message length")
	}

	msg := make([]byte, length)
	copy(msg, size[:])
	if _, err := io.ReadFull(r, msg[4:]); err != nil {
		return nil, err
	}
	return msg, nil
}

// parseQuery returns the database and command of an OP_QUERY on db.$cmd.
func parseQuery(body []byte) (string, bsoncore.Document, error) {
	_, rem, ok := wiremessage.ReadQueryFlags(body) //nolint:staticcheck // legacy hello
	if !ok {
		return "", nil, errors.New("missing query flags")
	}
	ns, rem, ok := wiremessage.ReadQueryFullCollectionName(rem) //nolint:staticcheck // legacy hello
	if !ok {
		return "", nil, errors.New("missing collection name")
	}
	_, rem, ok = wiremessage.ReadQueryNumberToSkip(rem) //nolint:staticcheck // legacy hello
	if !ok {
		return "", nil, errors.New("missing numberToSkip")
	}
	_, rem, ok = wiremessage.ReadQueryNumberToReturn(rem) //nolint:staticcheck // legacy hello
	if !ok {
		return "", nil, errors.New("missing numberToReturn")
	}
	query, _, ok := wiremessage.ReadQueryQuery(rem) //nolint:staticcheck // legacy hello
	if !ok {
		return "", nil, errors.New("missing query document")
	}

	if wrapped, ok := query.Lookup("$query").DocumentOK(); ok {
		query = wrapped
	}
	return strings.TrimSuffix(ns, ".$cmd"), query, nil
}

// parseMsg returns the body document of an OP_MSG and the documents of
// its document sequence, if any.
func parseMsg(body []byte) (bsoncore.Document, []bsoncore.Document, error) {
	flags, rem, ok := wiremessage.ReadMsgFlags(body)
	if !ok {
		return nil, nil, errors.New("missing message flags")
	}
	if flags&wiremessage.ChecksumPresent != 0 {
		if len(rem) < 4 {
			return nil, nil, errors.New("missing checksum")
		}
		rem = rem[:len(rem)-4]
	}

	var (
		cmd  bsoncore.Document
		docs []bsoncore.Document
	)
	for len(rem) > 0 {
		var stype wiremessage.SectionType
		stype, rem, ok = wiremessage.ReadMsgSectionType(rem)
		if !ok {
			return nil, nil, errors.New("missing section type")
		}

		switch stype {
		case wiremessage.SingleDocument:
			cmd, rem, ok = wiremessage.ReadMsgSectionSingleDocument(rem)
		case wiremessage.DocumentSequence:
			var seq []bsoncore.Document
			_, seq, rem, ok = wiremessage.ReadMsgSectionDocumentSequence(rem)
			docs = append(docs, seq...)
		default:
			return nil, nil, errors.New("unknown section type")
		}
		if !ok {
			return nil, nil, errors.New("truncated section")
		}
	}

	if cmd == nil {
		return nil, nil, errors.New("missing body section")
	}
	if embedded, ok := cmd.Lookup("documents").ArrayOK(); ok {
		values, err := embedded.Values()
		if err != nil {
			return nil, nil, err
		}
		for _, v := range values {
			if doc, ok := v.DocumentOK(); ok {
				docs = append(docs, doc)
			}
		}
	}
	return cmd, docs, nil
}

func opReply(responseTo int32, doc []byte) []byte {
	idx, dst := wiremessage.AppendHeaderStart(nil, wiremessage.NextRequestID(), responseTo, wiremessage.OpReply)
	dst = wiremessage.AppendReplyFlags(dst, 0)
	dst = wiremessage.AppendReplyCursorID(dst, 0)
	dst = wiremessage.AppendReplyStartingFrom(dst, 0)
	dst = wiremessage.AppendReplyNumberReturned(dst, 1)
	dst = append(dst, doc...)
	return bsoncore.UpdateLength(dst, idx, int32(len(dst[idx:]))) //nolint:gosec // replies are small
}

func opMsg(responseTo int32, doc []byte) []byte {
	idx, dst := wiremessage.AppendHeaderStart(nil, wiremessage.NextRequestID(), responseTo, wiremessage.OpMsg)
	dst = wiremessage.AppendMsgFlags(dst, 0)
	dst = wiremessage.AppendMsgSectionType(dst, wiremessage.SingleDocument)
	dst = append(dst, doc...)
	return bsoncore.UpdateLength(dst, idx, int32(len(dst[idx:]))) //nolint:gosec // replies are small
}
