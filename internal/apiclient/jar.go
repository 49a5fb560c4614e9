package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"shopadmin/internal/config"
)

type savedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

// FileJar is a cookie jar persisted to a file so a session survives between CLI runs.
// Cookies are keyed by origin (scheme://host).
type FileJar struct {
	path string

	mu    sync.Mutex
	jar   *cookiejar.Jar
	saved map[string][]savedCookie
}

func OpenFileJar(path string) (*FileJar, error) {
	jar, _ := cookiejar.New(nil)
	j := &FileJar{path: path, jar: jar, saved: map[string][]savedCookie{}}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return j, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(b, &j.saved); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	now := time.Now()
	for origin, cs := range j.saved {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		live := cs[:0]
		for _, sc := range cs {
			if !sc.Expires.IsZero() && sc.Expires.Before(now) {
				continue
			}
			live = append(live, sc)
		}
		j.saved[origin] = live
		j.jar.SetCookies(u, toHTTP(live))
	}
	return j, nil
}

func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)

	origin := u.Scheme + "://" + u.Host
	cur := j.saved[origin]
	now := time.Now()
	for _, c := range cookies {
		kept := cur[:0]
		for _, sc := range cur {
			if sc.Name != c.Name {
				kept = append(kept, sc)
			}
		}
		cur = kept
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			continue
		}
		sc := savedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if c.MaxAge > 0 {
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		cur = append(cur, sc)
	}
	if len(cur) == 0 {
		delete(j.saved, origin)
	} else {
		j.saved[origin] = cur
	}
	// The jar interface has no error path; a failed save only loses persistence.
	_ = j.saveLocked()
}

// Clear forgets every cookie, in memory and on disk.
func (j *FileJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar, _ = cookiejar.New(nil)
	j.saved = map[string][]savedCookie{}
	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (j *FileJar) saveLocked() error {
	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(j.saved, "", "  ")
	if err != nil {
		return err
	}
	return config.AtomicWriteFile(dir, "session.json.*.tmp", j.path, b, 0o600)
}

func toHTTP(cs []savedCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cs))
	for _, sc := range cs {
		out = append(out, &http.Cookie{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Domain:   sc.Domain,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
		})
	}
	return out
}
