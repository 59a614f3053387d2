package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joeycumines/go-prompt"
	pstrings "github.com/joeycumines/go-prompt/strings"
	"github.com/joeycumines/go-siteinit"
	"github.com/joeycumines/logiface"
)

// subresourceTarget is the load target delivered ahead of the main document
// load, mimicking an embedded resource finishing first.
const subresourceTarget = `about:blank`

var errUnknownPage = errors.New("unknown page")

type (
	// shell interprets commands, against one instance. Commands are executed
	// sequentially, by a single goroutine.
	shell struct {
		inst    *siteinit.Instance
		logger  *logiface.Logger[logiface.Event]
		out     io.Writer
		pages   map[siteinit.DocumentID]*siteinit.Page
		done    chan struct{}
		timeout time.Duration
	}

	command struct {
		name  string
		usage string
		run   func(sh *shell, args []string) error
	}
)

var commands []command

func init() {
	commands = []command{
		{`open`, `open <url>: create a page, and deliver its load signals`, (*shell).open},
		{`signal`, `signal <id> <target>: deliver one raw load signal`, (*shell).signal},
		{`eval`, `eval <id> <js>: run code in a page, printing the result`, (*shell).eval},
		{`close`, `close <id>: close a page`, (*shell).close},
		{`pages`, `pages: list open pages`, (*shell).listPages},
		{`reload-sites`, `reload-sites: rebuild the site index`, (*shell).reloadSites},
		{`sites`, `sites [host]: list site scripts, optionally those matching host`, (*shell).sites},
		{`providers`, `providers: list variable providers`, (*shell).providers},
		{`help`, `help: list commands`, (*shell).help},
		{`quit`, `quit: exit`, nil},
	}
}

func newShell(inst *siteinit.Instance, logger *logiface.Logger[logiface.Event], out io.Writer) *shell {
	return &shell{
		inst:    inst,
		logger:  logger,
		out:     out,
		pages:   make(map[siteinit.DocumentID]*siteinit.Page),
		done:    make(chan struct{}),
		timeout: 5 * time.Second,
	}
}

// run starts the interactive prompt, closing done once it exits.
func (x *shell) run() {
	defer close(x.done)
	p := prompt.New(
		x.execute,
		prompt.WithPrefix(`siteinit> `),
		prompt.WithTitle(`siteinit`),
		prompt.WithCompleter(x.complete),
		prompt.WithExitChecker(func(in string, breakline bool) bool {
			return breakline && isQuit(in)
		}),
	)
	p.RunNoExit()
}

func isQuit(in string) bool {
	switch strings.TrimSpace(in) {
	case `quit`, `exit`:
		return true
	}
	return false
}

func (x *shell) complete(in prompt.Document) ([]prompt.Suggest, pstrings.RuneNumber, pstrings.RuneNumber) {
	end := in.CurrentRuneIndex()
	w := in.GetWordBeforeCursor()
	start := end - pstrings.RuneCountInString(w)
	if strings.ContainsRune(in.TextBeforeCursor(), ' ') {
		return nil, start, end
	}
	s := make([]prompt.Suggest, 0, len(commands))
	for _, c := range commands {
		s = append(s, prompt.Suggest{Text: c.name, Description: c.usage})
	}
	return prompt.FilterHasPrefix(s, w, true), start, end
}

// execute runs one line of input, reporting errors to out.
func (x *shell) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 || isQuit(line) {
		return
	}
	for _, c := range commands {
		if c.name != fields[0] || c.run == nil {
			continue
		}
		if err := c.run(x, fields[1:]); err != nil {
			fmt.Fprintf(x.out, "%s: %v\n", c.name, err)
		}
		return
	}
	fmt.Fprintf(x.out, "unknown command %q, try help\n", fields[0])
}

// await runs fn on the event loop, bounded by the shell timeout.
func (x *shell) await(fn func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), x.timeout)
	defer cancel()
	return x.inst.Await(ctx, fn)
}

func (x *shell) page(raw string) (*siteinit.Page, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid page id %q", raw)
	}
	page, ok := x.pages[siteinit.DocumentID(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %d", errUnknownPage, id)
	}
	return page, nil
}

func (x *shell) open(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: open <url>")
	}
	var (
		page *siteinit.Page
		err  error
	)
	if err := x.await(func() { page, err = x.inst.NewPage(args[0]) }); err != nil {
		return err
	}
	if err != nil {
		return err
	}
	x.pages[page.ID()] = page
	x.logger.Debug().
		Uint64(`doc`, uint64(page.ID())).
		Str(`uri`, page.TopFrame().Location()).
		Log(`opened page`)

	// the main load is delivered twice, the second must be ignored
	for _, target := range [...]string{subresourceTarget, page.TopFrame().Location(), page.TopFrame().Location()} {
		if err := x.inst.DeliverLoad(page, siteinit.RawEvent{Target: target}); err != nil {
			return err
		}
	}
	if err := x.await(func() {}); err != nil {
		return err
	}

	fmt.Fprintf(x.out, "%d\t%s\n", page.ID(), page.TopFrame().Location())
	return nil
}

func (x *shell) signal(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: signal <id> <target>")
	}
	page, err := x.page(args[0])
	if err != nil {
		return err
	}
	return x.inst.DeliverLoad(page, siteinit.RawEvent{Target: args[1]})
}

func (x *shell) eval(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: eval <id> <js>")
	}
	page, err := x.page(args[0])
	if err != nil {
		return err
	}
	code := strings.Join(args[1:], ` `)
	var result string
	if err := x.await(func() {
		v, e := page.Runtime().RunString(code)
		switch {
		case e != nil:
			err = e
		case v != nil:
			result = v.String()
		}
	}); err != nil {
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(x.out, result)
	return nil
}

func (x *shell) close(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: close <id>")
	}
	page, err := x.page(args[0])
	if err != nil {
		return err
	}
	delete(x.pages, page.ID())
	return x.await(page.Close)
}

func (x *shell) listPages([]string) error {
	for _, id := range slices.Sorted(maps.Keys(x.pages)) {
		page := x.pages[id]
		fmt.Fprintf(x.out, "%d\t%s\n", page.ID(), page.TopFrame().Location())
	}
	return nil
}

func (x *shell) reloadSites([]string) error {
	if err := x.inst.ReloadSites(); err != nil {
		return err
	}
	return x.await(func() {})
}

func (x *shell) sites(args []string) error {
	if len(args) > 1 {
		return errors.New("usage: sites [host]")
	}
	var entries []siteinit.SiteEntry
	if len(args) == 0 {
		entries = x.inst.Index().Entries()
	} else {
		for entry := range x.inst.Index().Matches(args[0]) {
			entries = append(entries, entry)
		}
	}
	for _, entry := range entries {
		fmt.Fprintf(x.out, "%s\t%s\n", entry.Name, entry.Handle)
	}
	return nil
}

func (x *shell) providers([]string) error {
	var names []string
	if err := x.await(func() { names = x.inst.Providers().Names() }); err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(x.out, name)
	}
	return nil
}

func (x *shell) help([]string) error {
	for _, c := range commands {
		fmt.Fprintln(x.out, c.usage)
	}
	return nil
}
