// Package directory serves user profiles and the subordinate lookups built on
// the designation hierarchy.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ChelseaChanu/taskSync/internal/rbac"
	"github.com/ChelseaChanu/taskSync/internal/store"
	"github.com/ChelseaChanu/taskSync/internal/validate"
)

type Directory struct {
	docs store.DocumentStore
}

func New(docs store.DocumentStore) *Directory {
	return &Directory{docs: docs}
}

// Profile is the sign-up payload for a new user.
type Profile struct {
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	Designation string `json:"designation" validate:"required"`
	Email       string `json:"email"`
}

func (d *Directory) Get(ctx context.Context, uid string) (store.User, error) {
	doc, err := d.docs.Get(ctx, store.CollectionUsers, uid)
	if err != nil {
		return store.User{}, err
	}
	return decodeUser(doc)
}

// ResolveDesignation returns the designation stored on uid's profile.
func (d *Directory) ResolveDesignation(ctx context.Context, uid string) (rbac.Designation, error) {
	user, err := d.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	return rbac.Normalize(user.Designation), nil
}

// Validate checks the required names and that Designation is a known one.
func (p Profile) Validate() error {
	verr := &validate.Error{}
	if p.Designation != "" && !rbac.Valid(p.Designation) {
		verr.Add("designation", "must be one of Principal, Vice-Principal, Headmistress, Teacher")
	}
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	return validate.Into(verr, p)
}

// CreateProfile writes the profile for a newly signed-up uid.
func (d *Directory) CreateProfile(ctx context.Context, uid string, profile Profile) (store.User, error) {
	if err := profile.Validate(); err != nil {
		return store.User{}, err
	}

	user := store.User{
		UID:         uid,
		FirstName:   strings.TrimSpace(profile.FirstName),
		LastName:    strings.TrimSpace(profile.LastName),
		Designation: profile.Designation,
		Email:       profile.Email,
	}
	doc, err := d.docs.Put(ctx, store.CollectionUsers, uid, user)
	if err != nil {
		return store.User{}, fmt.Errorf("create profile: %w", err)
	}
	return decodeUser(doc)
}

// EnsureProfile returns uid's profile, creating it from defaults when it is
// missing. Accounts created before their profile write finished are repaired
// this way on sign-in.
func (d *Directory) EnsureProfile(ctx context.Context, uid string, defaults store.User) (store.User, error) {
	user, err := d.Get(ctx, uid)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, err
	}

	defaults.UID = uid
	defaults.Designation = string(rbac.Normalize(defaults.Designation))
	doc, err := d.docs.Put(ctx, store.CollectionUsers, uid, defaults)
	if err != nil {
		return store.User{}, fmt.Errorf("backfill profile: %w", err)
	}
	return decodeUser(doc)
}

// ListSubordinates returns every user ranked strictly below viewer, in
// directory order.
func (d *Directory) ListSubordinates(ctx context.Context, viewer rbac.Designation) ([]store.User, error) {
	users, err := d.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]store.User, 0, len(users))
	for _, user := range users {
		if rbac.Outranks(viewer, rbac.Normalize(user.Designation)) {
			out = append(out, user)
		}
	}
	return out, nil
}

// Search filters the viewer's subordinates by a case-insensitive substring of
// the full name. A blank term matches nothing.
func (d *Directory) Search(ctx context.Context, viewer rbac.Designation, term string) ([]store.User, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []store.User{}, nil
	}
	subordinates, err := d.ListSubordinates(ctx, viewer)
	if err != nil {
		return nil, err
	}
	out := make([]store.User, 0)
	for _, user := range subordinates {
		if strings.Contains(strings.ToLower(user.FirstName+" "+user.LastName), term) {
			out = append(out, user)
		}
	}
	return out, nil
}

// Names maps each known uid to its display name. Unknown uids are skipped.
func (d *Directory) Names(ctx context.Context, uids []string) (map[string]string, error) {
	names := make(map[string]string, len(uids))
	for _, uid := range uids {
		if _, ok := names[uid]; ok || uid == "" {
			continue
		}
		user, err := d.Get(ctx, uid)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		names[uid] = user.FullName()
	}
	return names, nil
}

// Lookup fetches the given uids, failing with store.ErrNotFound on the first
// missing one.
func (d *Directory) Lookup(ctx context.Context, uids []string) ([]store.User, error) {
	users := make([]store.User, 0, len(uids))
	for _, uid := range uids {
		user, err := d.Get(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", uid, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (d *Directory) all(ctx context.Context) ([]store.User, error) {
	docs, err := d.docs.Query(ctx, store.CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]store.User, 0, len(docs))
	for _, doc := range docs {
		user, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func decodeUser(doc store.Document) (store.User, error) {
	var user store.User
	if err := doc.Decode(&user); err != nil {
		return store.User{}, fmt.Errorf("decode user %s: %w", doc.ID, err)
	}
	user.UID = doc.ID
	user.CreatedAt = doc.CreatedAt
	return user, nil
}
