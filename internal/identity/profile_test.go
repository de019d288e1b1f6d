package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/campushub/internal/store"
)

// stubDocStore はGetのみ応答するドキュメントストアスタブ。
type stubDocStore struct {
	docs map[string]*store.Document
	err  error
}

func (s *stubDocStore) Subscribe(context.Context, store.Query) (<-chan store.Snapshot, error) {
	return nil, errors.New("not implemented")
}

func (s *stubDocStore) Set(context.Context, string, store.Document) error {
	return errors.New("not implemented")
}

func (s *stubDocStore) Delete(context.Context, string, string) error {
	return errors.New("not implemented")
}

func (s *stubDocStore) Get(_ context.Context, collection, id string) (*store.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.docs[collection+"/"+id], nil
}

func TestStoreProfileFinder_Name(t *testing.T) {
	f := NewStoreProfileFinder(&stubDocStore{docs: map[string]*store.Document{
		"users/u-1": {ID: "u-1", Data: map[string]any{"name": "キャンパス太郎"}},
		"users/u-2": {ID: "u-2", Data: map[string]any{}},
	}})

	tests := []struct {
		name string
		uid  string
		want string
	}{
		{name: "profile with name", uid: "u-1", want: "キャンパス太郎"},
		{name: "profile without name", uid: "u-2", want: ""},
		{name: "no profile document", uid: "u-9", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Name(context.Background(), tt.uid)
			if err != nil {
				t.Fatalf("Name() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStoreProfileFinder_StoreError(t *testing.T) {
	f := NewStoreProfileFinder(&stubDocStore{err: errors.New("connection lost")})
	if _, err := f.Name(context.Background(), "u-1"); err == nil {
		t.Error("Name() error = nil, want error")
	}
}
