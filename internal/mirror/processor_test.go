package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/auth"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws/awstest"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/categories"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/logging"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/outbox"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/products"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/users"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// world runs the users and products services over HTTP and the auth and
// categories services in-process, all sharing one fake DynamoDB and queue.
type world struct {
	db         *awstest.Dynamo
	queue      *awstest.SQS
	auth       *auth.Service
	categories *categories.Service
	products   *products.Service
	users      *users.Store
	processor  *Processor
}

func newWorld(t *testing.T) *world {
	t.Helper()
	log := logging.Discard()
	db := awstest.NewDynamo().
		CreateTable("credentials", "id").
		CreateTable("auth_outbox", "id").
		CreateTable("profiles", "id").
		CreateTable("categories", "id").
		CreateTable("category_outbox", "id").
		CreateTable("products", "id").
		CreateTable("category_snapshots", "id")
	queue := &awstest.SQS{}
	pub := aws.NewPublisher(queue, "https://sqs.local/mirror")

	w := &world{db: db, queue: queue, users: users.NewStore(db, "profiles")}
	w.auth = auth.NewService(
		auth.NewStore(db, "credentials", "auth_outbox"),
		auth.NewTokens("secret", time.Hour),
		outbox.NewRelay(outbox.NewStore(db, "auth_outbox"), pub, log),
		bcrypt.MinCost, log,
	)
	w.categories = categories.NewService(
		categories.NewStore(db, "categories", "category_outbox"),
		outbox.NewRelay(outbox.NewStore(db, "category_outbox"), pub, log),
		log,
	)
	w.products = products.NewService(products.NewStore(db, "products", "category_snapshots"), nil, log)

	usersSrv := rpc.NewServer("users", log)
	users.NewService(w.users, log).Register(usersSrv)
	usersTS := httptest.NewServer(usersSrv)
	t.Cleanup(usersTS.Close)

	productsSrv := rpc.NewServer("products", log)
	w.products.Register(productsSrv)
	productsTS := httptest.NewServer(productsSrv)
	t.Cleanup(productsTS.Close)

	w.processor = NewProcessor(
		users.NewClient(usersTS.URL, time.Second),
		products.NewClient(productsTS.URL, time.Second),
		log,
	)
	return w
}

// drain turns every message sent so far into one SQS batch.
func (w *world) drain() events.SQSEvent {
	var ev events.SQSEvent
	for i, m := range w.queue.Messages() {
		ev.Records = append(ev.Records, events.SQSMessage{MessageId: fmt.Sprintf("m-%d", i), Body: m.Body})
	}
	return ev
}

func TestMirror_RegistrationReachesProfiles(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	sess, err := w.auth.SignUp(ctx, validation.RegisterRequest{Email: "ada@example.com", Password: "Secret123", Name: "Ada"})
	require.NoError(t, err)

	resp, err := w.processor.Handle(ctx, w.drain())
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)

	p, err := w.users.Get(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "user", p.Role)

	// Redelivery of the same batch changes nothing.
	before := *p
	resp, err = w.processor.Handle(ctx, w.drain())
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	after, err := w.users.Get(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, before, *after)
}

func TestMirror_CategoryRenameReachesProducts(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	c, err := w.categories.Create(ctx, validation.CreateCategoryRequest{Name: "Books"})
	require.NoError(t, err)
	_, err = w.processor.Handle(ctx, w.drain())
	require.NoError(t, err)

	p, err := w.products.Create(ctx, validation.CreateProductRequest{Name: "Dune", Price: 10, CategoryID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, "Books", p.CategoryName)

	name := "Science Fiction"
	_, err = w.categories.Update(ctx, validation.UpdateCategoryRequest{ID: c.ID, Name: &name})
	require.NoError(t, err)
	resp, err := w.processor.Handle(ctx, w.drain())
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)

	got, err := w.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Science Fiction", got.CategoryName)
	assert.Equal(t, "science-fiction", got.CategorySlug)
}

func TestMirror_OutOfOrderRedeliveryKeepsNewestCategory(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	c, err := w.categories.Create(ctx, validation.CreateCategoryRequest{Name: "Books"})
	require.NoError(t, err)
	p, err := w.products.Create(ctx, validation.CreateProductRequest{Name: "Dune", Price: 10, CategoryID: c.ID})
	require.NoError(t, err)
	name := "Novels"
	_, err = w.categories.Update(ctx, validation.UpdateCategoryRequest{ID: c.ID, Name: &name})
	require.NoError(t, err)

	// The rename is delivered before the create event it supersedes.
	batch := w.drain()
	require.Len(t, batch.Records, 2)
	batch.Records[0], batch.Records[1] = batch.Records[1], batch.Records[0]
	resp, err := w.processor.Handle(ctx, batch)
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)

	got, err := w.products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Novels", got.CategoryName)
	assert.Equal(t, "novels", got.CategorySlug)
}

type failingProfiles struct{ err error }

func (f failingProfiles) Sync(context.Context, validation.SyncProfileRequest) (*users.Profile, error) {
	return nil, f.err
}

func TestHandle_ReportsOnlyRetryableFailures(t *testing.T) {
	down := NewProcessor(failingProfiles{err: fmt.Errorf("users: %w", apperr.Unavailable("users service unavailable", errors.New("connection refused")))}, nil, logging.Discard())

	ev := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "ok-unknown", Body: `{"id":"e1","type":"order.shipped","payload":{}}`},
		{MessageId: "garbage", Body: `not json`},
		{MessageId: "retry", Body: `{"id":"e2","type":"user.registered","payload":{"id":"u-1","email":"a@b.co","name":"A","role":"user"}}`},
	}}
	resp, err := down.Handle(context.Background(), ev)
	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "retry", resp.BatchItemFailures[0].ItemIdentifier)
}
