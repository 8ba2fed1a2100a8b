package testutil

import (
	"os"
	"testing"
)

// MongoURIEnv names the variable that enables MongoDB integration tests
const MongoURIEnv = "MEDDEVICES_TEST_MONGO_URI"

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// MongoURI returns the integration MongoDB URI or skips the test
func MongoURI(t *testing.T) string {
	t.Helper()
	IntegrationTest(t)
	uri := os.Getenv(MongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set", MongoURIEnv)
	}
	return uri
}
