package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/MrJamesThe3rd/outlay/internal/expense"
)

const DefaultMaxReceiptBytes int64 = 10 << 20

var (
	ErrReceiptBlocked  = errors.New("receipt url not allowed")
	ErrReceiptTooLarge = errors.New("receipt exceeds size limit")
)

type Option func(*Service)

// WithReceiptHosts restricts receipt downloads to the given hosts. Listed
// hosts may resolve to private addresses.
func WithReceiptHosts(hosts ...string) Option {
	return func(s *Service) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				s.receiptHosts[h] = struct{}{}
			}
		}
	}
}

func WithMaxReceiptBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxReceiptBytes = n
		}
	}
}

// publicClient only connects to public unicast addresses, whatever the
// URL's host resolves to, and ignores proxy settings.
func publicClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout, Control: denyNonPublic}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: timeout,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}

			return checkScheme(req.URL)
		},
	}
}

func (s *Service) trustedClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}

			if err := checkScheme(req.URL); err != nil {
				return err
			}

			if !s.listedHost(req.URL) {
				return fmt.Errorf("%w: redirect to %s", ErrReceiptBlocked, req.URL.Host)
			}

			return nil
		},
	}
}

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func denyNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrReceiptBlocked, address)
	}

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrReceiptBlocked, address)
	}

	ip = ip.Unmap()

	if !ip.IsGlobalUnicast() || ip.IsPrivate() || sharedAddressSpace.Contains(ip) {
		return fmt.Errorf("%w: %s is not a public address", ErrReceiptBlocked, ip)
	}

	return nil
}

func checkScheme(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrReceiptBlocked, u.Scheme)
	}

	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrReceiptBlocked)
	}

	return nil
}

func (s *Service) listedHost(u *url.URL) bool {
	_, ok := s.receiptHosts[strings.ToLower(u.Hostname())]
	return ok
}

// fetchReceipt downloads e's receipt fully into memory, bounded by the size limit.
func (s *Service) fetchReceipt(ctx context.Context, e *expense.Expense) (*http.Response, []byte, error) {
	u, err := url.Parse(e.ReceiptURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrReceiptBlocked, err)
	}

	if err := checkScheme(u); err != nil {
		return nil, nil, err
	}

	client := s.publicClient

	if len(s.receiptHosts) > 0 {
		if !s.listedHost(u) {
			return nil, nil, fmt.Errorf("%w: host %s is not allowed", ErrReceiptBlocked, u.Hostname())
		}

		client = s.trusted
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status code %d for url %s", resp.StatusCode, e.ReceiptURL)
	}

	if resp.ContentLength > s.maxReceiptBytes {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrReceiptTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxReceiptBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("reading body: %w", err)
	}

	if int64(len(data)) > s.maxReceiptBytes {
		return nil, nil, fmt.Errorf("%w: more than %d bytes", ErrReceiptTooLarge, s.maxReceiptBytes)
	}

	return resp, data, nil
}
