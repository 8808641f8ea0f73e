package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/models"
	"github.com/dmitrijs2005/crim/internal/store"
)

const (
	accountsPrefix      = "accounts/"
	conversationsPrefix = "conversations/"

	// DefaultMaxAttempts bounds compare-and-swap retries per update.
	DefaultMaxAttempts = 8
)

type Manager struct {
	accounts      *AccountStore
	conversations *ConversationStore
}

// Open builds an S3 client from opts and returns a Manager over it.
func Open(ctx context.Context, opts Options) (*Manager, error) {
	client, err := NewClient(ctx, opts)
	if err != nil {
		return nil, common.Wrap(common.ErrStoreUnavailable, err)
	}
	return NewManager(client, opts.Bucket), nil
}

func NewManager(client API, bucket string) *Manager {
	b := &bucketClient{api: client, bucket: bucket, maxAttempts: DefaultMaxAttempts}
	return &Manager{
		accounts:      &AccountStore{b: b},
		conversations: &ConversationStore{b: b},
	}
}

func (m *Manager) Accounts() store.AccountStore           { return m.accounts }
func (m *Manager) Conversations() store.ConversationStore { return m.conversations }
func (m *Manager) Close() error                           { return nil }

type bucketClient struct {
	api         API
	bucket      string
	maxAttempts int
}

func storeError(op, key string, err error) error {
	return common.Wrap(common.ErrStoreUnavailable, fmt.Errorf("%s %s: %w", op, key, err))
}

// get decodes the object at key into v and returns its ETag.
func (b *bucketClient) get(ctx context.Context, key string, v any) (string, error) {
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", common.ErrNotFound
		}
		return "", storeError("get", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", storeError("read", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return "", storeError("decode", key, err)
	}
	return aws.ToString(out.ETag), nil
}

// create writes v only if key does not exist yet.
func (b *bucketClient) create(ctx context.Context, key string, v any, exists error) error {
	data, err := json.Marshal(v)
	if err != nil {
		return storeError("encode", key, err)
	}
	_, err = b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return exists
		}
		return storeError("put", key, err)
	}
	return nil
}

// update reads the object at key into a fresh value from newValue, applies
// mutate and writes it back only if the ETag is unchanged. A lost race is
// retried; running out of attempts is common.ErrStoreConflict. Errors from
// mutate are returned as is.
func update[T any](ctx context.Context, b *bucketClient, key string, mutate func(*T) error) error {
	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		var v T
		etag, err := b.get(ctx, key, &v)
		if err != nil {
			return err
		}
		if err := mutate(&v); err != nil {
			return err
		}

		data, err := json.Marshal(&v)
		if err != nil {
			return storeError("encode", key, err)
		}
		_, err = b.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(b.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
			IfMatch:     aws.String(etag),
		})
		if err == nil {
			return nil
		}
		if !isPreconditionFailed(err) {
			return storeError("put", key, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return common.Wrap(common.ErrStoreConflict, fmt.Errorf("%s: gave up after %d attempts", key, b.maxAttempts))
}

type AccountStore struct {
	b *bucketClient
}

func accountKey(username string) string { return accountsPrefix + username + ".json" }

func (s *AccountStore) Create(ctx context.Context, acc *models.Account) error {
	rec := acc.Clone()
	if rec.Friends == nil {
		rec.Friends = []string{}
	}
	return s.b.create(ctx, accountKey(acc.Username), rec, common.ErrDuplicateUsername)
}

func (s *AccountStore) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	acc := &models.Account{}
	if _, err := s.b.get(ctx, accountKey(username), acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *AccountStore) AddFriend(ctx context.Context, username, friend string) error {
	return update(ctx, s.b, accountKey(username), func(acc *models.Account) error {
		if acc.HasFriend(friend) {
			return common.ErrAlreadyFriends
		}
		acc.Friends = append(acc.Friends, friend)
		return nil
	})
}

func (s *AccountStore) RemoveFriend(ctx context.Context, username, friend string) error {
	return update(ctx, s.b, accountKey(username), func(acc *models.Account) error {
		for i, f := range acc.Friends {
			if f == friend {
				acc.Friends = append(acc.Friends[:i:i], acc.Friends[i+1:]...)
				return nil
			}
		}
		return common.ErrNotAFriend
	})
}

type ConversationStore struct {
	b *bucketClient
}

func conversationKey(id string) string { return conversationsPrefix + id + ".json" }

func (s *ConversationStore) Create(ctx context.Context, conv *models.Conversation) error {
	rec := conv.Clone()
	return s.b.create(ctx, conversationKey(conv.ID), rec, common.ErrStoreConflict)
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	if _, err := s.b.get(ctx, conversationKey(id), conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationStore) AppendMessage(ctx context.Context, id string, msg models.EncryptedMessage) error {
	return update(ctx, s.b, conversationKey(id), func(conv *models.Conversation) error {
		conv.Messages = append(conv.Messages, msg)
		return nil
	})
}

// ListByParticipant scans the conversations prefix. Results follow key
// order, which S3 returns lexicographically.
func (s *ConversationStore) ListByParticipant(ctx context.Context, username string) ([]models.ConversationSummary, error) {
	p := s3.NewListObjectsV2Paginator(s.b.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.b.bucket),
		Prefix: aws.String(conversationsPrefix),
	})

	var out []models.ConversationSummary
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, storeError("list", conversationsPrefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			conv := &models.Conversation{}
			if _, err := s.b.get(ctx, key, conv); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if conv.HasUser(username) {
				out = append(out, models.ConversationSummary{ID: conv.ID, Users: conv.Users})
			}
		}
	}
	return out, nil
}
