// Package admin implements the ledgerctl subcommands: operator tasks that
// have no HTTP surface (top-ups, audits, seeding, dev tokens).
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/netx"
	"github.com/dmitrijs2005/leadkeeper/internal/server/auth"
	"github.com/dmitrijs2005/leadkeeper/internal/server/config"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/leadkeeper/internal/server/services"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingArg     = errors.New("missing argument")
	ErrAuditMismatch  = errors.New("ledger audit found mismatches")
)

const defaultTokenTTL = 24 * time.Hour

type command struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

type statementExporter interface {
	Export(ctx context.Context, userID string) (*models.Statement, error)
}

type Console struct {
	repomanager repomanager.RepositoryManager
	ledger      *services.LedgerService
	statements  statementExporter
	secret      []byte
	out         io.Writer
	commands    map[string]command
}

func NewConsole(m repomanager.RepositoryManager, cfg *config.Config, out io.Writer, logger logging.Logger) *Console {
	c := &Console{
		repomanager: m,
		ledger:      services.NewLedgerService(m, logger),
		statements:  services.NewStatementService(m, cfg, logger),
		secret:      []byte(cfg.SecretKey),
		out:         out,
	}
	c.commands = map[string]command{
		"adduser":   {"adduser -name NAME [-balance AMOUNT]", c.addUser},
		"addlead":   {"addlead -first NAME -last NAME [-company ..] [-email ..] [-mobile ..] [-linkedin ..] [-profile JSON]", c.addLead},
		"credit":    {"credit -user NAME -amount AMOUNT [-reason TEXT]", c.credit},
		"balance":   {"balance -user NAME", c.balance},
		"audit":     {"audit -user NAME", c.audit},
		"token":     {"token -user NAME [-ttl DURATION]", c.token},
		"statement": {"statement -user NAME [-o FILE]", c.statement},
	}
	return c
}

// CommandArgs drops the leading global flags ("-d dsn", "-s=secret") and
// returns the subcommand with its own arguments. Every global flag takes a
// value.
func CommandArgs(args []string) []string {
	for i := 0; i < len(args); i++ {
		if !strings.HasPrefix(args[i], "-") {
			return args[i:]
		}
		if !strings.Contains(args[i], "=") {
			i++
		}
	}
	return nil
}

// Run dispatches args[0] to its subcommand.
func (c *Console) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.Usage()
		return fmt.Errorf("%w: no command given", ErrUnknownCommand)
	}
	cmd, ok := c.commands[args[0]]
	if !ok {
		c.Usage()
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	return cmd.run(ctx, args[1:])
}

func (c *Console) Usage() {
	names := make([]string, 0, len(c.commands))
	for n := range c.commands {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintln(c.out, "usage: ledgerctl [-d dsn] [-s secret] [-c config.json] <command> [flags]")
	for _, n := range names {
		fmt.Fprintf(c.out, "  %s\n", c.commands[n].usage)
	}
}

func (c *Console) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func (c *Console) lookupUser(ctx context.Context, name string) (*models.User, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: -user", ErrMissingArg)
	}
	u, err := c.repomanager.Users().GetUserByLogin(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", name, err)
	}
	return u, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: -amount", ErrMissingArg)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", s, err)
	}
	return d, nil
}

func (c *Console) addUser(ctx context.Context, args []string) error {
	fs := c.flagSet("adduser")
	name := fs.String("name", "", "username")
	balance := fs.String("balance", "", "opening balance")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("%w: -name", ErrMissingArg)
	}

	u, err := c.repomanager.Users().Create(ctx, &models.User{UserName: *name})
	if err != nil {
		return err
	}

	if *balance != "" {
		amount, err := parseAmount(*balance)
		if err != nil {
			return err
		}
		t, err := c.ledger.Credit(ctx, u.ID, amount, "opening balance")
		if err != nil {
			return err
		}
		u.TokenBalance = t.BalanceAfter
	}

	fmt.Fprintf(c.out, "user %s id=%s balance=%s\n", u.UserName, u.ID, u.TokenBalance.StringFixed(2))
	return nil
}

func (c *Console) addLead(ctx context.Context, args []string) error {
	fs := c.flagSet("addlead")
	l := &models.Lead{}
	fs.StringVar(&l.FirstName, "first", "", "first name")
	fs.StringVar(&l.LastName, "last", "", "last name")
	fs.StringVar(&l.Title, "title", "", "job title")
	fs.StringVar(&l.Company, "company", "", "company")
	fs.StringVar(&l.Industry, "industry", "", "industry")
	fs.StringVar(&l.Location, "location", "", "location")
	fs.StringVar(&l.Email, "email", "", "work email")
	fs.StringVar(&l.PersonalEmail, "personal-email", "", "personal email")
	fs.StringVar(&l.MobilePhone, "mobile", "", "mobile phone")
	fs.StringVar(&l.LinkedInURL, "linkedin", "", "linkedin profile url")
	profile := fs.String("profile", "", "psychometric profile, JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if l.FirstName == "" || l.LastName == "" {
		return fmt.Errorf("%w: -first and -last", ErrMissingArg)
	}
	if *profile != "" {
		if !json.Valid([]byte(*profile)) {
			return fmt.Errorf("profile: invalid JSON")
		}
		l.PsychometricProfile = json.RawMessage(*profile)
	}

	l, err := c.repomanager.Leads().Create(ctx, l)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "lead %s %s id=%s\n", l.FirstName, l.LastName, l.ID)
	return nil
}

func (c *Console) credit(ctx context.Context, args []string) error {
	fs := c.flagSet("credit")
	name := fs.String("user", "", "username")
	amountStr := fs.String("amount", "", "amount to add")
	reason := fs.String("reason", "manual top-up", "reason recorded on the transaction")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := c.lookupUser(ctx, *name)
	if err != nil {
		return err
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		return err
	}

	t, err := c.ledger.Credit(ctx, u.ID, amount, *reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "credited %s to %s, balance %s (transaction %s)\n",
		amount.StringFixed(2), u.UserName, t.BalanceAfter.StringFixed(2), t.ID)
	return nil
}

func (c *Console) balance(ctx context.Context, args []string) error {
	fs := c.flagSet("balance")
	name := fs.String("user", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := c.lookupUser(ctx, *name)
	if err != nil {
		return err
	}
	b, err := c.ledger.GetBalance(ctx, u.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s\n", u.UserName, b.StringFixed(2))
	return nil
}

func (c *Console) audit(ctx context.Context, args []string) error {
	fs := c.flagSet("audit")
	name := fs.String("user", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := c.lookupUser(ctx, *name)
	if err != nil {
		return err
	}
	r, err := c.ledger.Audit(ctx, u.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "user:          %s\n", u.UserName)
	fmt.Fprintf(c.out, "stored:        %s\n", r.StoredBalance.StringFixed(2))
	fmt.Fprintf(c.out, "reconstructed: %s\n", r.ReconstructedBalance.StringFixed(2))
	for _, t := range r.DebitsWithoutGrant {
		fmt.Fprintf(c.out, "debit without grant: %s lead=%s group=%s amount=%s\n",
			t.ID, t.LeadID, t.FieldGroup, t.Amount.StringFixed(2))
	}
	for _, e := range r.GrantsWithoutDebit {
		fmt.Fprintf(c.out, "grant without debit: lead=%s group=%s\n", e.LeadID, e.FieldGroup)
	}

	if !r.Clean() {
		return ErrAuditMismatch
	}
	fmt.Fprintln(c.out, "ok")
	return nil
}

// token issues a JWT for local testing. Production tokens come from the
// CRM's own auth service.
func (c *Console) token(ctx context.Context, args []string) error {
	fs := c.flagSet("token")
	name := fs.String("user", "", "username")
	ttl := fs.Duration("ttl", defaultTokenTTL, "token validity")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := c.lookupUser(ctx, *name)
	if err != nil {
		return err
	}
	tok, err := auth.GenerateToken(u.ID, c.secret, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, tok)
	return nil
}

// statement exports the user's history to object storage and prints the
// presigned URL, or downloads the CSV into -o when given.
func (c *Console) statement(ctx context.Context, args []string) error {
	fs := c.flagSet("statement")
	name := fs.String("user", "", "username")
	output := fs.String("o", "", "write the CSV to this file instead of printing the URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := c.lookupUser(ctx, *name)
	if err != nil {
		return err
	}
	st, err := c.statements.Export(ctx, u.ID)
	if err != nil {
		return err
	}

	if *output == "" {
		fmt.Fprintf(c.out, "key: %s\nurl: %s\n", st.Key, st.URL)
		return nil
	}

	f, err := os.Create(*output)
	if err != nil {
		return err
	}
	n, err := netx.DownloadPresignedURL(ctx, st.URL, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("statement %s: %w", st.Key, err)
	}
	fmt.Fprintf(c.out, "wrote %d bytes to %s\n", n, *output)
	return nil
}
