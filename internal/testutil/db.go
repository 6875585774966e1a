// Package testutil holds helpers shared by package tests: a throwaway
// MongoDB database, request builders and template setup.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/stratacovid/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultTestDBURI is used unless STRATACOVID_TEST_MONGO_URI is set.
	DefaultTestDBURI = "mongodb://localhost:27017"
	// TestDBName prefixes every per-test database.
	TestDBName = "stratacovid_test"
)

var (
	clientOnce sync.Once
	client     *mongo.Client
	clientErr  error
)

func testDBURI() string {
	if v := os.Getenv("STRATACOVID_TEST_MONGO_URI"); v != "" {
		return v
	}
	return DefaultTestDBURI
}

// getClient connects once and shares the client across tests.
func getClient() (*mongo.Client, error) {
	clientOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		opts := options.Client().
			ApplyURI(testDBURI()).
			SetMaxPoolSize(50).
			SetConnectTimeout(5 * time.Second).
			SetServerSelectionTimeout(5 * time.Second)

		client, clientErr = mongo.Connect(ctx, opts)
		if clientErr != nil {
			return
		}
		clientErr = client.Ping(ctx, nil)
	})
	return client, clientErr
}

// SetupTestDB returns an empty database with indexes, named after the
// test and dropped on cleanup. The test is skipped when MongoDB is not
// reachable.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	client, err := getClient()
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", testDBURI(), err)
	}

	db := client.Database(fmt.Sprintf("%s_%s", TestDBName, sanitizeTestName(t.Name())))

	ctx, cancel := TestContext()
	defer cancel()

	if err := db.Drop(ctx); err != nil {
		t.Fatalf("failed to drop test database: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("failed to create indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("warning: failed to drop test database on cleanup: %v", err)
		}
	})

	return db
}

// sanitizeTestName maps t.Name() to a database-name suffix. MongoDB caps
// names at 63 bytes and the prefix takes 17.
func sanitizeTestName(name string) string {
	const maxLen = 46
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name) && len(out) < maxLen; i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

// TestContext returns a context with a timeout suitable for store calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
