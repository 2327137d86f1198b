package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cuemby/streakline/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketChallenges       = []byte("challenges")
	bucketHabits           = []byte("habits")
	bucketParticipants     = []byte("participants")
	bucketParticipantIndex = []byte("participant_index")
	bucketCalendarActions  = []byte("calendar_actions")
	bucketCompletions      = []byte("completions")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "streakline.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketChallenges,
			bucketHabits,
			bucketParticipants,
			bucketParticipantIndex,
			bucketCalendarActions,
			bucketCompletions,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func put(tx *bolt.Tx, bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

func get[T any](tx *bolt.Tx, bucket []byte, key, kind string) (*T, error) {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return nil, fmt.Errorf("%s %s: %w", kind, key, ErrNotFound)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", kind, key, err)
	}
	return &v, nil
}

// scan decodes every value under prefix (all values if prefix is nil)
// and keeps those accepted by keep.
func scan[T any](tx *bolt.Tx, bucket, prefix []byte, keep func(*T) bool) ([]*T, error) {
	var out []*T
	c := tx.Bucket(bucket).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return nil, err
		}
		if keep == nil || keep(&item) {
			out = append(out, &item)
		}
	}
	return out, nil
}

func participantIndexKey(challengeID, userID string) []byte {
	return []byte(challengeID + "\x00" + userID)
}

// Challenge operations
func (s *BoltStore) CreateChallenge(challenge *types.Challenge) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketChallenges, challenge.ID, challenge)
	})
}

func (s *BoltStore) GetChallenge(id string) (*types.Challenge, error) {
	var challenge *types.Challenge
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		challenge, err = get[types.Challenge](tx, bucketChallenges, id, "challenge")
		return err
	})
	return challenge, err
}

func (s *BoltStore) ListChallenges() ([]*types.Challenge, error) {
	var challenges []*types.Challenge
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		challenges, err = scan[types.Challenge](tx, bucketChallenges, nil, nil)
		return err
	})
	return challenges, err
}

// Habit operations
func (s *BoltStore) CreateHabit(habit *types.Habit) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketHabits, habit.ID, habit)
	})
}

func (s *BoltStore) GetHabit(id string) (*types.Habit, error) {
	var habit *types.Habit
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		habit, err = get[types.Habit](tx, bucketHabits, id, "habit")
		return err
	})
	return habit, err
}

func (s *BoltStore) ListHabitsByUser(userID string) ([]*types.Habit, error) {
	var habits []*types.Habit
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		habits, err = scan(tx, bucketHabits, nil, func(h *types.Habit) bool {
			return h.UserID == userID
		})
		return err
	})
	return habits, err
}

// Participant operations

// CreateParticipant stores a new participant. It fails with ErrAlreadyExists
// if the user already participates in the challenge.
func (s *BoltStore) CreateParticipant(participant *types.Participant) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(bucketParticipantIndex)
		key := participantIndexKey(participant.ChallengeID, participant.UserID)
		if existing := index.Get(key); existing != nil {
			return fmt.Errorf("participant for user %s in challenge %s: %w",
				participant.UserID, participant.ChallengeID, ErrAlreadyExists)
		}
		if err := index.Put(key, []byte(participant.ID)); err != nil {
			return err
		}
		return put(tx, bucketParticipants, participant.ID, participant)
	})
}

func (s *BoltStore) GetParticipant(id string) (*types.Participant, error) {
	var participant *types.Participant
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		participant, err = get[types.Participant](tx, bucketParticipants, id, "participant")
		return err
	})
	return participant, err
}

func (s *BoltStore) GetParticipantByChallengeUser(challengeID, userID string) (*types.Participant, error) {
	var participant *types.Participant
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketParticipantIndex).Get(participantIndexKey(challengeID, userID))
		if id == nil {
			return fmt.Errorf("participant for user %s in challenge %s: %w", userID, challengeID, ErrNotFound)
		}
		var err error
		participant, err = get[types.Participant](tx, bucketParticipants, string(id), "participant")
		return err
	})
	return participant, err
}

func (s *BoltStore) ListParticipants() ([]*types.Participant, error) {
	var participants []*types.Participant
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		participants, err = scan[types.Participant](tx, bucketParticipants, nil, nil)
		return err
	})
	return participants, err
}

func (s *BoltStore) ListParticipantsByChallenge(challengeID string) ([]*types.Participant, error) {
	var participants []*types.Participant
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		participants, err = scan(tx, bucketParticipants, nil, func(p *types.Participant) bool {
			return p.ChallengeID == challengeID
		})
		return err
	})
	return participants, err
}

// UpdateParticipant applies mutate to the stored participant inside a single
// write transaction, so concurrent writers of different fields do not clobber
// each other.
func (s *BoltStore) UpdateParticipant(id string, mutate func(*types.Participant) error) (*types.Participant, error) {
	var participant *types.Participant
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		participant, err = get[types.Participant](tx, bucketParticipants, id, "participant")
		if err != nil {
			return err
		}
		if err := mutate(participant); err != nil {
			return err
		}
		// Identity fields are immutable
		if participant.ID != id {
			return fmt.Errorf("participant id cannot change (%s -> %s)", id, participant.ID)
		}
		return put(tx, bucketParticipants, id, participant)
	})
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// Calendar action operations
func (s *BoltStore) CreateCalendarAction(action *types.CalendarAction) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketCalendarActions, action.ID, action)
	})
}

func (s *BoltStore) ListCalendarActions(userID, challengeID string) ([]*types.CalendarAction, error) {
	var actions []*types.CalendarAction
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		actions, err = scan(tx, bucketCalendarActions, nil, func(a *types.CalendarAction) bool {
			return a.UserID == userID && (challengeID == "" || a.ChallengeID == challengeID)
		})
		return err
	})
	return actions, err
}

// Completion operations

// PutCompletion stores the completion unless one already exists for the same
// (participant, activity, day). It reports whether a new record was written.
func (s *BoltStore) PutCompletion(completion *types.Completion) (bool, error) {
	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		key := completion.Key()
		if tx.Bucket(bucketCompletions).Get([]byte(key)) != nil {
			return nil
		}
		created = true
		return put(tx, bucketCompletions, key, completion)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *BoltStore) ListCompletions(participantID string) ([]*types.Completion, error) {
	var completions []*types.Completion
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		completions, err = scan[types.Completion](tx, bucketCompletions, []byte(participantID+"/"), nil)
		return err
	})
	return completions, err
}

func (s *BoltStore) ListCompletionsOn(participantID string, day types.Day) ([]*types.Completion, error) {
	var completions []*types.Completion
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		completions, err = scan(tx, bucketCompletions, []byte(participantID+"/"), func(c *types.Completion) bool {
			return c.Day == day
		})
		return err
	})
	return completions, err
}

// Leaderboard returns participant summaries ordered by total completions
// (descending), then current streak (descending), then join time (ascending),
// then user ID.
func (s *BoltStore) Leaderboard(challengeID string) ([]*types.ParticipantSummary, error) {
	participants, err := s.ListParticipantsByChallenge(challengeID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*types.ParticipantSummary, 0, len(participants))
	for _, p := range participants {
		summaries = append(summaries, p.Summary())
	}
	SortLeaderboard(summaries)
	return summaries, nil
}

// SortLeaderboard orders summaries in place using the leaderboard rules
func SortLeaderboard(summaries []*types.ParticipantSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.TotalCompletions != b.TotalCompletions {
			return a.TotalCompletions > b.TotalCompletions
		}
		if a.CurrentStreak != b.CurrentStreak {
			return a.CurrentStreak > b.CurrentStreak
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.UserID < b.UserID
	})
}
