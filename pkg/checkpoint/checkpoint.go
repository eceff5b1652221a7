package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketUploads = []byte("uploads")

// State is the persisted progress of one resumable upload: the open
// multipart session and the etags of the parts already accepted.
type State struct {
	Key       string         `json:"key"`
	UploadID  string         `json:"upload_id"`
	PartSize  int64          `json:"part_size"`
	TotalSize int64          `json:"total_size"`
	Parts     map[int]string `json:"parts"` // part number -> etag
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store persists resumable-upload checkpoints in a bolt database so an
// interrupted file upload can resume from the last accepted part instead of
// restarting.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the checkpoint database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketUploads)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoint bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func stateKey(bucket, key string) []byte {
	return []byte(bucket + "/" + key)
}

// Load returns the saved state for (bucket, key), or nil when none exists.
func (s *Store) Load(bucket, key string) (*State, error) {
	var st *State
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketUploads).Get(stateKey(bucket, key))
		if data == nil {
			return nil
		}
		st = &State{}
		return json.Unmarshal(data, st)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return st, nil
}

// Save writes the state for (bucket, key).
func (s *Store) Save(bucket, key string, st *State) error {
	st.UpdatedAt = time.Now()
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUploads).Put(stateKey(bucket, key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Delete removes the state for (bucket, key). Deleting a missing state is
// not an error.
func (s *Store) Delete(bucket, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUploads).Delete(stateKey(bucket, key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
