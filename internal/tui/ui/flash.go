package ui

import (
	"sync"
	"time"
)

// FlashLevel distinguishes informational notices from errors.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashErr
)

// FlashMessage is a transient notice shown in the status bar until it
// expires.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

const (
	infoTTL = 5 * time.Second
	errTTL  = 10 * time.Second
)

// FlashModel holds the most recent notice. Newer notices replace older
// ones; expiry is checked on read so no timer goroutine is needed.
type FlashModel struct {
	mu sync.RWMutex
	cur FlashMessage
}

func NewFlashModel() *FlashModel {
	return &FlashModel{}
}

// Info posts an informational notice.
func (f *FlashModel) Info(msg string) {
	f.post(FlashMessage{Text: msg, Level: FlashInfo, Expires: time.Now().Add(infoTTL)})
}

// Err posts an error notice. Errors linger longer than info notices.
func (f *FlashModel) Err(err error) {
	f.post(FlashMessage{Text: err.Error(), Level: FlashErr, Expires: time.Now().Add(errTTL)})
}

func (f *FlashModel) post(m FlashMessage) {
	f.mu.Lock()
	f.cur = m
	f.mu.Unlock()
}

// GetMessage returns the current notice, or nil once it has expired.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.cur.Text == "" || time.Now().After(f.cur.Expires) {
		return nil
	}
	m := f.cur
	return &m
}
