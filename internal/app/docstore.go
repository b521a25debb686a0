package app

import (
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	documentBucket  = []byte("documents")
	ErrBlobNotFound = errors.New("document content not found")
)

// DocStore keeps uploaded document bytes in a bbolt file
type DocStore struct {
	db *bolt.DB
}

func OpenDocStore(file string) (*DocStore, error) {
	db, err := bolt.Open(file, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open document store %s", file)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init document bucket")
	}
	return &DocStore{db: db}, nil
}

func (s *DocStore) Put(key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(documentBucket).Put([]byte(key), data)
	})
}

func (s *DocStore) Get(key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(documentBucket).Get([]byte(key))
		if v == nil {
			return ErrBlobNotFound
		}
		data = append([]byte{}, v...)
		return nil
	})
	return data, err
}

func (s *DocStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(documentBucket).Delete([]byte(key))
	})
}

func (s *DocStore) Close() error {
	return s.db.Close()
}
