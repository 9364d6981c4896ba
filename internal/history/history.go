// Package history keeps a git repository per document and commits a JSON
// snapshot of the document graph at every preparation step.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"docprep/api/internal/domain"
)

const snapshotFile = "snapshot.json"

// ErrNoHistory is returned when a document has never been recorded.
var ErrNoHistory = errors.New("history: document has no history")

type SnapshotRecipient struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	SendStatus string `json:"sendStatus"`
}

type SnapshotField struct {
	RecipientEmail string  `json:"recipientEmail"`
	Type           string  `json:"type"`
	Page           int     `json:"page"`
	PositionX      float64 `json:"positionX"`
	PositionY      float64 `json:"positionY"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
}

// Snapshot is the committed form of a document graph. Database IDs and
// recipient tokens are left out so that unchanged content yields no commit.
type Snapshot struct {
	Title      string              `json:"title"`
	Status     string              `json:"status"`
	Subject    string              `json:"subject,omitempty"`
	Message    string              `json:"message,omitempty"`
	Recipients []SnapshotRecipient `json:"recipients"`
	Fields     []SnapshotField     `json:"fields"`
}

type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Change describes one differing attribute between two snapshots.
type Change struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// FromGraph builds the snapshot for a document graph.
func FromGraph(g domain.Graph) Snapshot {
	emails := make(map[int64]string, len(g.Recipients))
	snap := Snapshot{
		Title:      g.Document.Title,
		Status:     string(g.Document.Status),
		Subject:    g.Document.Meta.Subject,
		Message:    g.Document.Meta.Message,
		Recipients: make([]SnapshotRecipient, 0, len(g.Recipients)),
		Fields:     make([]SnapshotField, 0, len(g.Fields)),
	}
	for _, r := range g.Recipients {
		emails[r.ID] = r.Email
		snap.Recipients = append(snap.Recipients, SnapshotRecipient{
			Email:      r.Email,
			Name:       r.Name,
			Role:       string(r.Role),
			SendStatus: string(r.SendStatus),
		})
	}
	for _, f := range g.Fields {
		snap.Fields = append(snap.Fields, SnapshotField{
			RecipientEmail: emails[f.RecipientID],
			Type:           string(f.Type),
			Page:           f.Page,
			PositionX:      f.PositionX,
			PositionY:      f.PositionY,
			Width:          f.Width,
			Height:         f.Height,
		})
	}
	return snap
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[int64]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// Record commits snap for the document, creating the repository on first
// use. When nothing changed since the last commit, that commit is returned.
func (s *Service) Record(documentID int64, snap Snapshot, author, message string) (Commit, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(documentID)
	if err != nil {
		return Commit{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Commit{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return Commit{}, fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return Commit{}, fmt.Errorf("git add snapshot: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@docprep.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		head, headErr := repo.Head()
		if headErr != nil {
			return Commit{}, fmt.Errorf("read head: %w", headErr)
		}
		hash = head.Hash()
	} else if err != nil {
		return Commit{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), nil
}

// Log lists the newest commits first. limit <= 0 means all of them.
func (s *Service) Log(documentID int64, limit int) ([]Commit, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(documentID)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(c *object.Commit) error {
		items = append(items, toCommit(c))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// SnapshotAt reads the snapshot committed at hash, which may be abbreviated.
func (s *Service) SnapshotAt(documentID int64, hash string) (Snapshot, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(documentID)
	if err != nil {
		return Snapshot{}, err
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return Snapshot{}, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readSnapshot(commitObj)
}

// Compare reports what changed between two recorded snapshots.
func (s *Service) Compare(documentID int64, fromHash, toHash string) ([]Change, error) {
	from, err := s.SnapshotAt(documentID, fromHash)
	if err != nil {
		return nil, err
	}
	to, err := s.SnapshotAt(documentID, toHash)
	if err != nil {
		return nil, err
	}
	return Diff(from, to), nil
}

// Diff lists changed attributes sorted by field name.
func Diff(from, to Snapshot) []Change {
	pairs := []Change{
		{Field: "title", Before: from.Title, After: to.Title},
		{Field: "status", Before: from.Status, After: to.Status},
		{Field: "subject", Before: from.Subject, After: to.Subject},
		{Field: "message", Before: from.Message, After: to.Message},
		{Field: "recipients", Before: recipientSummary(from.Recipients), After: recipientSummary(to.Recipients)},
		{Field: "fields", Before: strconv.Itoa(len(from.Fields)) + " fields", After: strconv.Itoa(len(to.Fields)) + " fields"},
	}
	out := make([]Change, 0)
	for _, p := range pairs {
		if p.Before != p.After {
			out = append(out, p)
		}
	}
	if len(from.Fields) == len(to.Fields) && !sameFields(from.Fields, to.Fields) {
		out = append(out, Change{Field: "fields", Before: "[placement]", After: "[placement]"})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func recipientSummary(recipients []SnapshotRecipient) string {
	parts := make([]string, 0, len(recipients))
	for _, r := range recipients {
		parts = append(parts, r.Email+":"+r.Role)
	}
	return strings.Join(parts, ", ")
}

func sameFields(a, b []SnapshotField) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *Service) repoPath(documentID int64) string {
	return filepath.Join(s.baseDir, strconv.FormatInt(documentID, 10))
}

func (s *Service) open(documentID int64) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(documentID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) openOrInit(documentID int64) (*git.Repository, error) {
	repo, err := s.open(documentID)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, ErrNoHistory) {
		return nil, err
	}

	path := s.repoPath(documentID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) documentLock(documentID int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[documentID] = lock
	}
	return lock
}

func readSnapshot(commitObj *object.Commit) (Snapshot, error) {
	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot from commit: %w", err)
	}
	contents, err := file.Contents()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(contents), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func toCommit(c *object.Commit) Commit {
	return Commit{
		Hash:      c.Hash.String()[:7],
		Message:   strings.TrimSpace(c.Message),
		Author:    c.Author.Name,
		CreatedAt: c.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range strings.ToLower(input) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			out = append(out, r)
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "docprep"
	}
	return string(out)
}
