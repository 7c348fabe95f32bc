package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tetsu-is/crate-digger/internal/config"
	"github.com/Tetsu-is/crate-digger/internal/log"
	"github.com/Tetsu-is/crate-digger/internal/repository"
)

const (
	numUsers       = 1000
	postsPerUser   = 20 // 20,000 in total
	followsPerUser = 50 // ~50,000 in total
	ownedPerUser   = 12
	wantedPerUser  = 6
	privateEvery   = 10 // every 10th user is private

	namePrefix  = "digger_"
	namePattern = `digger\_%`
)

type album struct {
	id, title, artist string
}

var albums = []album{
	{"kind-of-blue", "Kind of Blue", "Miles Davis"},
	{"a-love-supreme", "A Love Supreme", "John Coltrane"},
	{"blue-train", "Blue Train", "John Coltrane"},
	{"mingus-ah-um", "Mingus Ah Um", "Charles Mingus"},
	{"time-out", "Time Out", "The Dave Brubeck Quartet"},
	{"moanin", "Moanin'", "Art Blakey & The Jazz Messengers"},
	{"somethin-else", "Somethin' Else", "Cannonball Adderley"},
	{"speak-no-evil", "Speak No Evil", "Wayne Shorter"},
	{"maiden-voyage", "Maiden Voyage", "Herbie Hancock"},
	{"song-for-my-father", "Song for My Father", "Horace Silver"},
	{"pet-sounds", "Pet Sounds", "The Beach Boys"},
	{"revolver", "Revolver", "The Beatles"},
	{"whats-going-on", "What's Going On", "Marvin Gaye"},
	{"blue", "Blue", "Joni Mitchell"},
	{"rumours", "Rumours", "Fleetwood Mac"},
	{"remain-in-light", "Remain in Light", "Talking Heads"},
	{"unknown-pleasures", "Unknown Pleasures", "Joy Division"},
	{"horses", "Horses", "Patti Smith"},
	{"innervisions", "Innervisions", "Stevie Wonder"},
	{"maggot-brain", "Maggot Brain", "Funkadelic"},
	{"in-a-silent-way", "In a Silent Way", "Miles Davis"},
	{"head-hunters", "Head Hunters", "Herbie Hancock"},
	{"astral-weeks", "Astral Weeks", "Van Morrison"},
	{"loveless", "Loveless", "My Bloody Valentine"},
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		l := log.L()
		l.Fatal().Err(err).Msg("load config")
	}
	log.Init(log.Config{Level: cfg.Log.Level, Pretty: true, ServiceName: "seed"})
	logger := log.L()

	pool, err := repository.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect")
	}
	defer pool.Close()

	if len(os.Args) > 1 && os.Args[1] == "--clean" {
		if err := cleanTestData(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("clean")
		}
		return
	}

	if err := generateTestData(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("generate")
	}
}

// muted runs fn in a transaction with change notifications switched off.
func muted(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET LOCAL crate_digger.mute_changes = 'on'"); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func newIDs(n int) ([]string, error) {
	ids := make([]string, n)
	for i := range ids {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		ids[i] = id.String()
	}
	return ids, nil
}

func generateTestData(ctx context.Context, pool *pgxpool.Pool) error {
	logger := log.L()

	var existing int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE name LIKE $1", namePattern).Scan(&existing); err != nil {
		return fmt.Errorf("check: %w", err)
	}
	if existing > 0 {
		logger.Info().Int("users", existing).Msg("test data already present, skipping; run with --clean to regenerate")
		return nil
	}

	// One hash for everyone; bcrypt at cost 10 takes ~100ms.
	hashedPw, err := bcrypt.GenerateFromPassword([]byte("password123"), 10)
	if err != nil {
		return fmt.Errorf("bcrypt: %w", err)
	}

	userIDs, err := newIDs(numUsers)
	if err != nil {
		return err
	}
	isPrivate := func(i int) bool { return i%privateEvery == 0 }

	return muted(ctx, pool, func(tx pgx.Tx) error {
		now := time.Now()

		// --- 1. users ---
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"users"},
			[]string{"id", "name", "display_name", "is_private", "created_at", "updated_at"},
			pgx.CopyFromSlice(numUsers, func(i int) ([]any, error) {
				name := fmt.Sprintf("%s%04d", namePrefix, i)
				return []any{userIDs[i], name, name, isPrivate(i), now, now}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		logger.Info().Int64("rows", n).Msg("[1/5] users")

		// --- 2. user_auth ---
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"user_auth"},
			[]string{"user_id", "hashed_password", "created_at", "updated_at"},
			pgx.CopyFromSlice(numUsers, func(i int) ([]any, error) {
				return []any{userIDs[i], string(hashedPw), now, now}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("user_auth: %w", err)
		}
		logger.Info().Int64("rows", n).Msg("[2/5] user_auth")

		// --- 3. collection_entries ---
		// Owned and wanted albums come from one permutation so a user never
		// wants what they already own.
		type entryRow struct {
			user  string
			kind  string
			album album
			at    time.Time
		}
		entries := make([]entryRow, 0, numUsers*(ownedPerUser+wantedPerUser))
		for i := range numUsers {
			perm := rand.Perm(len(albums))
			for k, idx := range perm[:ownedPerUser+wantedPerUser] {
				kind := "collection"
				if k >= ownedPerUser {
					kind = "wishlist"
				}
				at := now.Add(-time.Duration(rand.Intn(90*24)) * time.Hour)
				entries = append(entries, entryRow{userIDs[i], kind, albums[idx], at})
			}
		}
		entryIDs, err := newIDs(len(entries))
		if err != nil {
			return err
		}
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"collection_entries"},
			[]string{"id", "user_id", "kind", "album_id", "title", "artist", "created_at"},
			pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
				e := entries[i]
				return []any{entryIDs[i], e.user, e.kind, e.album.id, e.album.title, e.album.artist, e.at}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("collection_entries: %w", err)
		}
		logger.Info().Int64("rows", n).Msg("[3/5] collection_entries")

		// --- 4. posts ---
		// Round robin over users and spread evenly over 30 days so authors
		// interleave on the timeline.
		totalPosts := numUsers * postsPerUser
		baseTime := now.Add(-30 * 24 * time.Hour)
		span := 30 * 24 * time.Hour
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"posts"},
			[]string{"id", "user_id", "content", "album_id", "created_at", "updated_at"},
			pgx.CopyFromSlice(totalPosts, func(i int) ([]any, error) {
				id, err := uuid.NewV7()
				if err != nil {
					return nil, err
				}
				userIdx := i % numUsers
				a := albums[rand.Intn(len(albums))]
				createdAt := baseTime.Add(time.Duration(float64(span) * float64(i) / float64(totalPosts)))
				content := fmt.Sprintf("Spinning %s by %s (#%d)", a.title, a.artist, i)
				return []any{id.String(), userIDs[userIdx], content, a.id, createdAt, createdAt}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("posts: %w", err)
		}
		logger.Info().Int64("rows", n).Msg("[4/5] posts")

		// --- 5. follows ---
		// Following a private account leaves the edge pending.
		type followRow struct {
			follower, following string
			status              string
		}
		follows := make([]followRow, 0, numUsers*followsPerUser)
		pending := 0
		for i := range numUsers {
			added := 0
			for _, j := range rand.Perm(numUsers) {
				if j == i {
					continue
				}
				status := "accepted"
				if isPrivate(j) {
					status = "pending"
					pending++
				}
				follows = append(follows, followRow{userIDs[i], userIDs[j], status})
				added++
				if added >= followsPerUser {
					break
				}
			}
		}
		followIDs, err := newIDs(len(follows))
		if err != nil {
			return err
		}
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"follows"},
			[]string{"id", "follower_id", "following_id", "status", "created_at"},
			pgx.CopyFromSlice(len(follows), func(i int) ([]any, error) {
				f := follows[i]
				return []any{followIDs[i], f.follower, f.following, f.status, now}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("follows: %w", err)
		}
		logger.Info().Int64("rows", n).Int("pending", pending).Msg("[5/5] follows")
		return nil
	})
}

// cleanTestData removes seeded users. Everything else cascades.
func cleanTestData(ctx context.Context, pool *pgxpool.Pool) error {
	logger := log.L()
	return muted(ctx, pool, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, "DELETE FROM users WHERE name LIKE $1", namePattern)
		if err != nil {
			return err
		}
		logger.Info().Int64("users", ct.RowsAffected()).Msg("test data removed")
		return nil
	})
}
