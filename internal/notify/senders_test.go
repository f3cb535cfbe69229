package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
)

func TestWeComSender_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	s := NewWeComSender(time.Second, zap.NewNop())
	cfg := &models.ChannelConfig{
		Name:   models.ChannelWeCom,
		Config: map[string]string{"webhook_url": srv.URL},
	}

	err := s.Send(context.Background(), cfg, "New SMS [GW-001]", "phone: 10086")
	require.NoError(t, err)

	assert.Equal(t, "text", got["msgtype"])
	text := got["text"].(map[string]any)
	assert.Contains(t, text["content"], "New SMS [GW-001]")
	assert.Contains(t, text["content"], "phone: 10086")
}

func TestWeComSender_ProviderErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// HTTP 200 但业务码非零，同样算失败
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errcode":93000,"errmsg":"invalid webhook url"}`))
	}))
	defer srv.Close()

	s := NewWeComSender(time.Second, zap.NewNop())
	cfg := &models.ChannelConfig{Config: map[string]string{"webhook_url": srv.URL}}

	err := s.Send(context.Background(), cfg, "t", "b")
	assert.ErrorContains(t, err, "93000")
}

func TestWeComSender_MissingURL(t *testing.T) {
	s := NewWeComSender(time.Second, zap.NewNop())
	err := s.Send(context.Background(), &models.ChannelConfig{Config: map[string]string{}}, "t", "b")
	assert.Error(t, err)
}

func TestFeishuSender_SendsInteractiveCard(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer srv.Close()

	s := NewFeishuSender(time.Second, zap.NewNop())
	cfg := &models.ChannelConfig{Config: map[string]string{"webhook_url": srv.URL}}

	err := s.Send(context.Background(), cfg, "Call event [GW-001]", "phone: 10086")
	require.NoError(t, err)

	assert.Equal(t, "interactive", got["msg_type"])
	card := got["card"].(map[string]any)
	header := card["header"].(map[string]any)
	titleObj := header["title"].(map[string]any)
	assert.Equal(t, "Call event [GW-001]", titleObj["content"])
}

func TestFeishuSender_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":19001,"msg":"param invalid"}`))
	}))
	defer srv.Close()

	s := NewFeishuSender(time.Second, zap.NewNop())
	cfg := &models.ChannelConfig{Config: map[string]string{"webhook_url": srv.URL}}

	err := s.Send(context.Background(), cfg, "t", "b")
	assert.ErrorContains(t, err, "19001")
}

func TestBuildHTMLMail(t *testing.T) {
	mail := buildHTMLMail("noreply@example.com", []string{"ops@example.com"},
		"New SMS [GW-001]", "phone: 10086\ncontent: <b>hi</b>")

	assert.Contains(t, mail, "From: noreply@example.com\r\n")
	assert.Contains(t, mail, "To: ops@example.com\r\n")
	assert.Contains(t, mail, "Subject: New SMS [GW-001]\r\n")
	assert.Contains(t, mail, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	// HTML 转义
	assert.Contains(t, mail, "&lt;b&gt;hi&lt;/b&gt;")
	assert.NotContains(t, mail, "<b>hi</b>")
}

func TestSMTPSender_MissingConfig(t *testing.T) {
	s := NewSMTPSender(time.Second, zap.NewNop())

	err := s.Send(context.Background(), &models.ChannelConfig{Config: map[string]string{}}, "t", "b")
	assert.ErrorContains(t, err, "host")

	err = s.Send(context.Background(), &models.ChannelConfig{
		Config: map[string]string{"host": "mail.example.com"},
	}, "t", "b")
	assert.ErrorContains(t, err, "recipients")
}

func TestSplitAddrs(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, splitAddrs("a@x.com, b@x.com,"))
	assert.Nil(t, splitAddrs(""))
}
