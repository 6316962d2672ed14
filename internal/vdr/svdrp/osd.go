package svdrp

import "github.com/rs/zerolog"

// OSD puts messages on VDR's on-screen display via MESG.
type OSD struct {
	client *Client
	logger zerolog.Logger
}

// NewOSD creates an on-screen display messenger.
func NewOSD(client *Client, logger zerolog.Logger) *OSD {
	return &OSD{
		client: client,
		logger: logger.With().Str("component", "osd").Logger(),
	}
}

// ShowMessage displays a message on screen.
func (o *OSD) ShowMessage(text string) error {
	_, err := o.client.Exec("MESG %s", text)
	return err
}
