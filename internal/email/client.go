// Package email talks to the IMAP server: login, unread search and raw
// message retrieval.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/draft-responder/internal/model"
)

// searchDateLayout is the IMAP date format used by SEARCH SINCE.
const searchDateLayout = "02-Jan-2006"

// Mailbox is an authenticated connection to one mailbox. Close must be
// called exactly once when the caller is done.
type Mailbox interface {
	// SearchUnseenSince returns the UIDs of unread messages received on
	// or after the day of since, in ascending order.
	SearchUnseenSince(ctx context.Context, since time.Time) ([]uint32, error)

	// FetchRaw returns the full RFC 5322 bytes of one message.
	FetchRaw(ctx context.Context, uid uint32) ([]byte, error)

	Close() error
}

// IMAPClient holds the settings needed to open IMAP sessions.
type IMAPClient struct {
	host     string
	port     int
	username string
	password string
	mailbox  string
	markSeen bool
	logger   *slog.Logger
}

// NewIMAPClient creates a client for the given mail settings.
func NewIMAPClient(cfg model.MailConfig, logger *slog.Logger) *IMAPClient {
	if logger == nil {
		logger = slog.Default()
	}
	mailbox := cfg.Mailbox
	if mailbox == "" {
		mailbox = model.DefaultMailbox
	}
	return &IMAPClient{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		username: cfg.Address,
		password: cfg.Password,
		mailbox:  mailbox,
		markSeen: cfg.MarkSeen,
		logger:   logger,
	}
}

// Addr returns the host:port the client dials.
func (c *IMAPClient) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Dial connects over TLS and authenticates. Login failures are returned
// as *AuthError.
func (c *IMAPClient) Dial(ctx context.Context) (Mailbox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := c.Addr()
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Close()
		return nil, &AuthError{Username: c.username, Err: err}
	}

	c.logger.Debug("imap login succeeded", "addr", addr, "user", c.username)

	return &session{
		client:   client,
		mailbox:  c.mailbox,
		markSeen: c.markSeen,
		logger:   c.logger,
	}, nil
}

type session struct {
	client   *imapclient.Client
	mailbox  string
	markSeen bool
	selected bool
	logger   *slog.Logger
}

func (s *session) selectMailbox() error {
	if s.selected {
		return nil
	}
	if _, err := s.client.Select(s.mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", s.mailbox, err)
	}
	s.selected = true
	return nil
}

func (s *session) SearchUnseenSince(
	ctx context.Context, since time.Time,
) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.selectMailbox(); err != nil {
		return nil, err
	}

	s.logger.Debug("imap search", "since", FormatSearchDate(since), "mailbox", s.mailbox)

	data, err := s.client.UIDSearch(SearchCriteria(since), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	all := data.AllUIDs()
	uids := make([]uint32, 0, len(all))
	for _, uid := range all {
		uids = append(uids, uint32(uid))
	}
	slices.Sort(uids)
	return uids, nil
}

func (s *session) FetchRaw(ctx context.Context, uid uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.selectMailbox(); err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{Peek: !s.markSeen}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message UID %d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message UID %d has no body", uid)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching message UID %d: %w", uid, err)
	}

	return raw, nil
}

// Close closes the selected mailbox (expunging) and logs out. The
// connection is always released.
func (s *session) Close() error {
	var errs []error

	if s.selected {
		if err := s.client.UnselectAndExpunge().Wait(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", s.mailbox, err))
		}
		s.selected = false
	}

	if err := s.client.Logout().Wait(); err != nil {
		errs = append(errs, fmt.Errorf("logging out: %w", err))
		if cerr := s.client.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("closing connection: %w", cerr))
		}
	}

	return errors.Join(errs...)
}

// SearchCriteria builds the SINCE <day> UNSEEN criteria. IMAP SINCE has
// day granularity, so the time of day is dropped.
func SearchCriteria(since time.Time) *imap.SearchCriteria {
	day := time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, since.Location())
	return &imap.SearchCriteria{
		Since:   day,
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
}

// SinceDate returns the search start for a window of daysBack days
// ending at now.
func SinceDate(now time.Time, daysBack int) time.Time {
	return now.AddDate(0, 0, -daysBack)
}

// FormatSearchDate renders t the way it appears on the wire in a SEARCH
// SINCE command, e.g. "02-Jun-2025".
func FormatSearchDate(t time.Time) string {
	return t.Format(searchDateLayout)
}
