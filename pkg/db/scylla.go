package db

import (
	"log"
	"time"

	"github.com/gocql/gocql"
)

type Session struct {
	*gocql.Session
}

func NewSession(hosts []string, keyspace string) (*Session, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}

	log.Println("Connected to ScyllaDB cluster")
	return &Session{Session: session}, nil
}

// EnsureKeyspace creates the chat keyspace. Connect to the system keyspace
// first; schema migration tooling should own this in production.
func EnsureKeyspace(hosts []string, keyspace string) error {
	sys, err := NewSession(hosts, "system")
	if err != nil {
		return err
	}
	defer sys.Close()

	return sys.Query(`CREATE KEYSPACE IF NOT EXISTS ` + keyspace +
		` WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`).Exec()
}

// EnsureSchema creates the messages table. Partitioning by room key with
// ids clustered descending makes the newest-first cursor page a single
// range scan.
func EnsureSchema(session *Session) error {
	return session.Query(`CREATE TABLE IF NOT EXISTS messages (
		room_key text,
		id bigint,
		member_id text,
		member_name text,
		member_avatar text,
		content text,
		file_url text,
		deleted boolean,
		created_at timestamp,
		updated_at timestamp,
		PRIMARY KEY (room_key, id)
	) WITH CLUSTERING ORDER BY (id DESC)`).Exec()
}
