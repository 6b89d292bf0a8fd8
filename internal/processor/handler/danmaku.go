package handler

import (
	"context"
	"fmt"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
)

// Corpos de mensagem gerados automaticamente por ferramentas de sorteio;
// não valem repasse.
func defaultIgnoredDanmaku() map[string]bool {
	return map[string]bool{
		"点赞":    true,
		"关注":    true,
		"老板大气":  true,
		"吃瓜":    true,
		"666":   true,
		"777":   true,
		"23333": true,
	}
}

// handleDanmaku repassa uma linha de chat formatada para o sink de
// notificação. Não é um evento de sorteio; só compartilha a tabela de
// dispatch.
func (h *Handlers) handleDanmaku(ctx context.Context, env events.EventEnvelope) error {
	if h.Notifier == nil {
		return nil
	}

	// info é o array posicional do protocolo:
	// info[1] texto, info[2] [uid, nome, admin], info[3] medalha, info[4] [nível]
	info := pSlice(env.Payload, "info")
	if len(info) < 5 {
		return nil
	}

	text := fmt.Sprintf("%v", info[1])
	if h.IgnoredDanmaku[text] {
		return nil
	}

	user, _ := info[2].([]any)
	if len(user) < 3 {
		return nil
	}
	uid, name := user[0], user[1]
	isAdmin, _ := user[2].(float64)

	medal, _ := info[3].([]any)
	medalLevel, medalName := any("-"), any("undefined")
	if len(medal) >= 2 {
		medalLevel, medalName = medal[0], medal[1]
	}

	level, _ := info[4].([]any)
	userLevel := any(0)
	if len(level) > 0 {
		userLevel = level[0]
	}

	adminTag := ""
	if isAdmin != 0 {
		adminTag = "[管] "
	}
	message := fmt.Sprintf(
		"%d (%s) ->\n\n%s[%v %v] [%v][%v][%v]-> %s",
		env.RoomID, h.Now().Format("2006-01-02 15:04:05"),
		adminTag, medalName, medalLevel, uid, name, userLevel, text,
	)

	h.Log.Info(message)
	return h.Notifier.Notify(ctx, message)
}
