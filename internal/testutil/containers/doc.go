// Package containers provides testcontainer management for integration tests.
//
// It starts and manages the Docker containers the agent's integration suites
// run against:
//
//   - MySQL 8.0 for the alert history repositories
//nolint:misspell // Mosquitto is the official Eclipse project name
//   - Eclipse Mosquitto as the playback command broker
//   - ntfy as the push notification backend
//
// Container lifecycle:
//
// Containers are typically managed from TestMain in integration test packages:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(context.Background(), nil)
//	    if err != nil {
//	        panic(err)
//	    }
//	    code := m.Run()
//	    _ = mysqlContainer.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// Build tags:
//
// Integration tests using this package carry the "integration" build tag:
//
//	//go:build integration
//
//	go test -tags=integration ./...
package containers
