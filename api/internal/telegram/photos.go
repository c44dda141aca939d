package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"kisan-mitra/api/internal/capture"
	"kisan-mitra/api/internal/chat"
	"kisan-mitra/api/internal/diagnose"
)

func (r *Router) dispatchPhoto(ctx context.Context, cid int64, fileID, mime string) {
	if !r.state.acquire(cid) {
		r.send(cid, "Still analyzing your previous photo, please wait.")
		return
	}
	r.jobs.Add(1)
	go func() {
		defer r.jobs.Done()
		defer r.state.release(cid)
		r.acceptPhoto(ctx, cid, fileID, mime)
	}()
}

func (r *Router) acceptPhoto(ctx context.Context, cid int64, fileID, mime string) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.log.Error("get file", zap.Int64("chat_id", cid), zap.Error(err))
		r.send(cid, "Could not get the photo from Telegram. Please send it again.")
		return
	}
	b, err := r.download(ctx, url)
	if err != nil {
		r.log.Error("download photo", zap.Int64("chat_id", cid), zap.Error(err))
		r.send(cid, "Could not download the photo. Please send it again.")
		return
	}
	uri, err := capture.FromBytes(b, mime)
	if err != nil {
		r.send(cid, capture.UserMessage(err))
		return
	}

	r.send(cid, "AI is analyzing your crop...")
	raw, err := r.Relay.Diagnose(ctx, diagnose.Request{Image: uri, Language: r.state.language(cid)})
	if err != nil {
		r.log.Warn("diagnose failed", zap.Int64("chat_id", cid), zap.String("kind", string(diagnose.KindOf(err))))
		r.send(cid, "Analysis failed: "+userError(err))
		return
	}

	res := diagnose.Normalize(raw)
	if _, err := r.History.Record(ctx, clientID(cid), res, uri); err != nil {
		r.log.Error("history record", zap.Int64("chat_id", cid), zap.Error(err))
	}
	r.send(cid, diagnose.FormatText(res))

	conv, err := chat.Seed(res)
	if err != nil {
		r.state.endConversation(cid)
		return
	}
	r.state.startConversation(cid, conv)
	r.send(cid, askFollowUpText)
}

func (r *Router) followUp(ctx context.Context, cid int64, text string) {
	c, ok := r.state.conversation(cid)
	if !ok {
		r.send(cid, "Send me a photo of the affected crop to get a diagnosis.")
		return
	}
	c.mu.Lock()
	reply, err := c.conv.Ask(ctx, r.Chatter, text)
	c.mu.Unlock()
	if err != nil {
		r.log.Warn("follow-up failed", zap.Int64("chat_id", cid), zap.Error(err))
		reply = chat.FallbackReply
	}
	r.send(cid, reply)
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(io.LimitReader(resp.Body, capture.MaxImageBytes+1))
}

func userError(err error) string {
	var de *diagnose.Error
	if errors.As(err, &de) {
		return de.Error()
	}
	return "An internal server error occurred."
}
