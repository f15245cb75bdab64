package ticket

import (
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/clock"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"
)

// confirmation is one keep-open question posted to a ticket's room.
type confirmation struct {
	reason       string
	message      *platform.SentMessage
	timer        *clock.Timer
	subscription platform.Subscription
}

func (c *confirmation) stop() {
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.subscription != nil {
		c.subscription.Close()
	}
}

func (t *Ticket) watcherDone() bool {
	return t.status != StatusTaken || t.excluded || !t.m.settings.IsGcEnabled
}

// onIdle runs when the room's text channel saw no human message for a
// whole inactive period. Returning true keeps watching.
func (t *Ticket) onIdle() bool {
	voice := t.room.GeneralVoice()
	if voice != nil {
		occupancy, err := t.m.platform.VoiceOccupancy(t.m.ctx, t.m.settings.GuildId, voice.Id)
		if err != nil {
			t.logger.Warnf("failed to read voice occupancy, err[%v]", err)
			return true
		}
		if occupancy > 0 {
			t.logger.Debugf("idle text but voice occupancy[%v], watching again", occupancy)
			return true
		}
	}
	if t.pendingAsk != nil {
		return true
	}

	// Watching goes on when the question could not be posted.
	return !t.askToDelete(ReasonInactivity)
}

// askToDelete asks the participants whether they still need the ticket
// and closes it if nobody confirms within the buffer time. It reports
// whether the question was posted.
func (t *Ticket) askToDelete(reason string) bool {
	if t.status != StatusTaken || t.excluded || t.pendingAsk != nil || !t.m.settings.IsGcEnabled {
		return false
	}

	ask := &confirmation{reason: reason}
	sent, err := t.m.platform.SendMessage(t.m.ctx, t.room.GeneralText().Id, t.keepMessage(reason))
	if err != nil {
		t.logger.Warnf("failed to ask to keep ticket open reason[%v], err[%v]", reason, err)
		if reason == ReasonAbandoned {
			t.afterConfirmation(reason)
		}
		return false
	}
	ask.message = sent
	ask.subscription = t.m.events.OnAffordance(sent.Id, func(e platform.AffordanceTriggered) {
		t.m.post(func() { t.onKeep(ask, e) })
	})
	ask.timer = t.m.clock.AfterFunc(t.m.settings.BufferTime, func() {
		t.m.post(func() { t.onAskExpired(ask) })
	})
	t.pendingAsk = ask

	t.logger.Infof("asking to keep ticket open reason[%v] buffer[%v]", reason, t.m.settings.BufferTime)
	return true
}

func (t *Ticket) onKeep(ask *confirmation, e platform.AffordanceTriggered) {
	if t.pendingAsk != ask || e.IsBot || e.Key != keepKey || !t.isParticipant(e.UserId) {
		return
	}
	t.finishAsk()

	t.logger.Infof("user[%v] kept ticket open reason[%v]", e.UserId, ask.reason)
	if _, err := t.m.platform.SendMessage(t.m.ctx, t.room.GeneralText().Id,
		notice(platform.MentionUser(e.UserId)+" kept this ticket open.")); err != nil {
		t.logger.Warnf("failed to acknowledge keep, err[%v]", err)
	}
	t.afterConfirmation(ask.reason)
}

// afterConfirmation schedules the next check. An abandoned ticket is
// asked again after another inactive period; an idle one goes back to
// plain activity watching.
func (t *Ticket) afterConfirmation(reason string) {
	if reason != ReasonAbandoned {
		if !t.excluded {
			t.watcher.Start()
		}
		return
	}

	var timer *clock.Timer
	timer = t.m.clock.AfterFunc(t.m.settings.InactivePeriod, func() {
		t.m.post(func() { t.onRecheck(timer) })
	})
	t.recheck = timer
}

func (t *Ticket) onRecheck(timer *clock.Timer) {
	if t.recheck != timer {
		return
	}
	t.recheck = nil
	if t.status != StatusTaken || t.excluded || !t.abandonSequence || !t.helpers.Empty() {
		return
	}
	t.askToDelete(ReasonAbandoned)
}

func (t *Ticket) onAskExpired(ask *confirmation) {
	if t.pendingAsk != ask {
		return
	}
	t.finishAsk()
	if t.status != StatusTaken {
		return
	}
	if t.excluded {
		t.logger.Infof("nobody kept ticket open but it is excluded, reason[%v]", ask.reason)
		return
	}
	t.close(ask.reason)
}

func (t *Ticket) finishAsk() {
	ask := t.pendingAsk
	t.pendingAsk = nil
	ask.stop()

	message := t.keepMessage(ask.reason)
	message.Disabled = true
	t.edit(ask.message, message, "keep")
}

// cancelAbandonment runs when a helper joins a ticket whose helpers all
// left: the pending re-check and any open abandonment question go away.
func (t *Ticket) cancelAbandonment() {
	if t.recheck != nil {
		t.recheck.Stop()
		t.recheck = nil
	}
	if t.pendingAsk != nil && t.pendingAsk.reason == ReasonAbandoned {
		t.finishAsk()
	}
	t.abandonSequence = false
	t.logger.Infof("abandonment sequence cancelled")
}

// includeExclude toggles whether garbage collection may close the
// ticket. A running confirmation window is left alone either way.
func (t *Ticket) includeExclude(exclude bool) {
	if t.excluded == exclude {
		return
	}
	t.excluded = exclude
	t.logger.Infof("excluded[%v]", exclude)

	if exclude {
		t.watcher.Stop()
		return
	}
	if t.status == StatusTaken && t.m.settings.IsGcEnabled {
		t.watcher.Stop()
		t.watcher.Start()
	}
}
