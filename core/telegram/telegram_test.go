package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/moviebot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegistrySkipsInvalidCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Запустить бота"})
	reg.RegisterCommand("info", commands.Command{Handler: noop, Description: "no slash"})
	reg.RegisterCommand("/empty", commands.Command{Handler: noop})
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "duplicate"})
	reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "debug", Hidden: true})

	assert.Equal(t, []string{"/start", "/debug"}, reg.Names())
	assert.Equal(t, []tele.Command{{Text: "start", Description: "Запустить бота"}}, reg.ListCommands(true))
	assert.Len(t, reg.ListCommands(false), 2)

	key, cmd, ok := reg.LookupCommand("start")
	require.True(t, ok)
	assert.Equal(t, "/start", key)
	assert.Equal(t, "Запустить бота", cmd.Description)
}

type fakeSetter struct {
	got []interface{}
	err error
}

func (f *fakeSetter) SetCommands(opts ...interface{}) error {
	f.got = opts
	return f.err
}

func TestInitBotCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/info", commands.Command{Handler: noop, Description: "Показать информацию"})

	setter := &fakeSetter{}
	require.NoError(t, InitBotCommands(setter, reg))
	require.Len(t, setter.got, 1)
	assert.Equal(t, []tele.Command{{Text: "info", Description: "Показать информацию"}}, setter.got[0])

	setter.err = errors.New("unauthorized")
	assert.Error(t, InitBotCommands(setter, reg))
}

func TestBuildPoller(t *testing.T) {
	assert.Nil(t, BuildPoller(PollerOptions{RunMode: "webhook"}))

	p, ok := BuildPoller(PollerOptions{RunMode: "longpoll"}).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, p.Timeout)

	p = BuildPoller(PollerOptions{LongPollTimeoutSeconds: 30}).(*tele.LongPoller)
	assert.Equal(t, 30*time.Second, p.Timeout)
}
