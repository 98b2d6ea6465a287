package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/skip2/go-qrcode"
)

// deepLinkPrefix is the /start payload that opens an event card.
const deepLinkPrefix = "event_"

// eventDeepLink returns the t.me link that starts the bot on the event card.
func eventDeepLink(botUsername string, eventID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%s%d", botUsername, deepLinkPrefix, eventID)
}

// sendQRCode handles the /qrcode command.
// Without arguments it uses the chat's next upcoming event.
func (b *Bot) sendQRCode(req *request, args string) {
	if b.username == "" {
		b.reply(req, "QR codes are unavailable: the bot username is unknown")
		return
	}

	ev, err := b.qrTarget(req, args)
	if err != nil {
		switch {
		case errors.Is(err, ErrEventNotFound):
			b.reply(req, "Event not found")
		case errors.Is(err, strconv.ErrSyntax), errors.Is(err, strconv.ErrRange):
			b.reply(req, "Usage: /qrcode [event id]")
		default:
			req.log.Error("failed to pick event for QR code", "error", err)
			b.reply(req, "Failed to load events")
		}
		return
	}

	png, err := qrcode.Encode(eventDeepLink(b.username, ev.ID), qrcode.Medium, 256)
	if err != nil {
		req.log.Error("failed to generate QR code", "event_id", ev.ID, "error", err)
		b.reply(req, "Failed to generate the QR code")
		return
	}
	photo := tgbotapi.NewPhotoUpload(req.chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("event_%d.png", ev.ID),
		Bytes: png,
	})
	photo.Caption = "Scan to open " + ev.Title
	b.send(req, photo)
}

func (b *Bot) qrTarget(req *request, args string) (*Event, error) {
	if args = strings.TrimPrefix(strings.TrimSpace(args), "#"); args != "" {
		id, err := strconv.ParseInt(args, 10, 64)
		if err != nil {
			return nil, err
		}
		ev, err := b.repo.GetEvent(req.ctx, id)
		if err != nil {
			return nil, err
		}
		if ev.ChatID != req.chatID {
			return nil, ErrEventNotFound
		}
		return ev, nil
	}

	events, err := b.repo.ListEventsByChat(req.ctx, req.chatID)
	if err != nil {
		return nil, err
	}
	now := b.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for i := range events {
		if !events[i].Date.Before(today) {
			return &events[i], nil
		}
	}
	return nil, ErrEventNotFound
}
