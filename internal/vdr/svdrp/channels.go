package svdrp

import (
	"errors"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/vdr"
)

// Directory resolves channel numbers via LSTC, with an LRU cache in front
// because the viewer zaps across a small working set of channels.
type Directory struct {
	client *Client
	cache  *lru.Cache[int, *vdr.Channel]
	logger zerolog.Logger
}

// NewDirectory creates a channel directory with the given cache size.
func NewDirectory(client *Client, cacheSize int, logger zerolog.Logger) (*Directory, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[int, *vdr.Channel](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("channel cache: %w", err)
	}
	return &Directory{
		client: client,
		cache:  cache,
		logger: logger.With().Str("component", "channels").Logger(),
	}, nil
}

// ChannelByNumber returns the channel, or vdr.ErrNotFound.
func (d *Directory) ChannelByNumber(number int) (*vdr.Channel, error) {
	if ch, ok := d.cache.Get(number); ok {
		return ch, nil
	}

	lines, err := d.client.Exec("LSTC %d", number)
	if err != nil {
		var perr *textproto.Error
		if errors.As(err, &perr) && perr.Code == 501 {
			return nil, vdr.ErrNotFound
		}
		return nil, err
	}
	if len(lines) == 0 {
		return nil, vdr.ErrNotFound
	}

	ch, err := parseChannelLine(lines[0])
	if err != nil {
		return nil, err
	}
	d.cache.Add(number, ch)
	return ch, nil
}

// parseChannelLine parses one LSTC response line: "<number> <definition>",
// the definition being a channels.conf line
// (name[;provider]:freq:params:source:srate:vpid:apid:tpid:ca:sid:nid:tid:rid).
func parseChannelLine(line string) (*vdr.Channel, error) {
	num, def, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return nil, fmt.Errorf("malformed channel line %q", line)
	}
	number, err := strconv.Atoi(num)
	if err != nil {
		return nil, fmt.Errorf("channel number in %q: %w", line, err)
	}

	fields := strings.Split(def, ":")
	name := fields[0]
	provider := ""
	if n, p, ok := strings.Cut(name, ";"); ok {
		name, provider = n, p
	}

	ch := &vdr.Channel{
		Number:   number,
		Name:     name,
		Provider: provider,
	}
	// source-nid-tid-sid forms the stable channel ID
	if len(fields) > 11 {
		ch.ID = fmt.Sprintf("%s-%s-%s-%s", fields[3], fields[10], fields[11], fields[9])
	}
	return ch, nil
}
