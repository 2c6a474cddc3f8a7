package protocol

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/nao1215/authprobe/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB protocol constants.
const (
	mongoDBName        = "MongoDB"
	mongoDBDefaultPort = 27017

	// DefaultNoticeDatabase is the database the notice document goes to.
	DefaultNoticeDatabase = "admin"

	// DefaultNoticeCollection is the collection the notice document goes to.
	DefaultNoticeCollection = "authprobe_notice"

	// NoticeMessage is stored in the notice document.
	NoticeMessage = "This server accepted an unauthenticated write. Enable access control: https://www.mongodb.com/docs/manual/tutorial/enable-authentication/"
)

// MongoDB server error codes that mean the client lacks credentials.
const (
	mongoCodeUnauthorized         = 13
	mongoCodeAuthenticationFailed = 18
)

// MongoDBDriver classifies MongoDB servers.
//
// It establishes a real driver session and pings the admin database to
// force server selection. A port where no session can be established holds
// some other protocol. Once a session exists, an auth-gated command decides
// between "unauthenticated" and "authenticated":
//   - notice enabled: insert one notice document, leaving evidence of the
//     exposure for the operator
//   - notice disabled: listDatabases, which changes nothing on the server
//
// Command errors that are not authorization failures are reported as
// indeterminate, which callers treat as secured.
type MongoDBDriver struct {
	opts options
}

// NewMongoDBDriver creates a MongoDB driver.
func NewMongoDBDriver(opts ...Option) *MongoDBDriver {
	return &MongoDBDriver{opts: newOptions(opts)}
}

// Name returns the display name.
func (d *MongoDBDriver) Name() string {
	return mongoDBName
}

// DefaultPort returns the default MongoDB port.
func (d *MongoDBDriver) DefaultPort() uint16 {
	return mongoDBDefaultPort
}

// NoticeEnabled reports whether the driver writes a notice document.
func (d *MongoDBDriver) NoticeEnabled() bool {
	return d.opts.noticeEnabled
}

// Handshake classifies the MongoDB server at host:port.
func (d *MongoDBDriver) Handshake(ctx context.Context, host string, port uint16) model.Outcome {
	address := net.JoinHostPort(host, strconv.Itoa(int(port)))
	logger := d.opts.logger.With("service", mongoDBName, "address", address)

	clientOpts := mongooptions.Client().
		SetHosts([]string{address}).
		SetDirect(true).
		SetDialer(d.opts.dialer).
		SetConnectTimeout(d.opts.timeout).
		SetServerSelectionTimeout(d.opts.timeout).
		SetTimeout(d.opts.timeout).
		SetMaxPoolSize(1).
		SetRetryReads(false).
		SetRetryWrites(false).
		SetAppName("authprobe")

	ctx, cancel := context.WithTimeout(ctx, d.opts.timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		logger.Debug("failed to create session", "error", err)
		return model.ProtocolMismatch()
	}
	defer func() {
		discCtx, discCancel := cleanupContext(ctx, d.opts.timeout)
		defer discCancel()
		if err := client.Disconnect(discCtx); err != nil {
			logger.Debug("failed to disconnect", "error", err)
		}
	}()

	// ping runs against admin and forces server selection.
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Debug("no session established", "error", err)
		return model.ProtocolMismatch()
	}

	err = d.commandProbe(ctx, client)
	outcome := classifyMongoError(err)
	logger.Debug("handshake complete", "outcome", outcome.Kind, "error", err)
	return outcome
}

// commandProbe runs the auth-gated command.
func (d *MongoDBDriver) commandProbe(ctx context.Context, client *mongo.Client) error {
	if !d.opts.noticeEnabled {
		_, err := client.ListDatabaseNames(ctx, bson.D{})
		return err
	}

	coll := client.Database(d.opts.noticeDatabase).Collection(d.opts.noticeCollection)
	_, err := coll.InsertOne(ctx, bson.D{
		{Key: "message", Value: NoticeMessage},
		{Key: "source", Value: "authprobe"},
		{Key: "probed_at", Value: time.Now().UTC()},
	})
	return err
}

// classifyMongoError maps the command-stage result to an outcome.
func classifyMongoError(err error) model.Outcome {
	if err == nil {
		return model.Unauthenticated()
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) &&
		(serverErr.HasErrorCode(mongoCodeUnauthorized) || serverErr.HasErrorCode(mongoCodeAuthenticationFailed)) {
		return model.Authenticated()
	}

	return model.Indeterminate(err.Error())
}
