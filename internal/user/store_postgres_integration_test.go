//go:build integration

package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"choregate/pkg/platform/sentinel"
	"choregate/pkg/testutil/containers"
)

const usersSchema = `
CREATE TABLE users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    account_type  TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL
)`

type PostgresUserStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
	ctx   context.Context
}

func (s *PostgresUserStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T(), usersSchema)
	s.store = NewPostgresStore(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresUserStoreSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(s.ctx, "TRUNCATE users")
	s.Require().NoError(err)
}

func TestPostgresUserStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresUserStoreSuite))
}

func (s *PostgresUserStoreSuite) TestSaveAndFind() {
	u := User{
		ID:           uuid.NewString(),
		Username:     "dana",
		PasswordHash: "$2a$10$fakefakefakefakefakefake",
		AccountType:  AccountTypeParent,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.Save(s.ctx, u))

	byName, err := s.store.FindByUsername(s.ctx, "dana")
	s.Require().NoError(err)
	s.Equal(u.ID, byName.ID)
	s.Equal(AccountTypeParent, byName.AccountType)

	byID, err := s.store.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("dana", byID.Username)
}

func (s *PostgresUserStoreSuite) TestFindMissing() {
	_, err := s.store.FindByUsername(s.ctx, "nobody")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresUserStoreSuite) TestSaveIsUpsert() {
	u := User{
		ID:           uuid.NewString(),
		Username:     "dana",
		PasswordHash: "hash-1",
		AccountType:  AccountTypeParent,
		CreatedAt:    time.Now().UTC(),
	}
	s.Require().NoError(s.store.Save(s.ctx, u))

	u.PasswordHash = "hash-2"
	s.Require().NoError(s.store.Save(s.ctx, u))

	got, err := s.store.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("hash-2", got.PasswordHash)
}
