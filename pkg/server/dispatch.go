package server

import (
	"github.com/NicolasHaas/matchadmin/pkg/match"
	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/vote"
)

const voteKickReason = "Kicked by vote"

// dispatch applies the action of a passed vote.
func (s *Server) dispatch(action vote.Action, initiator model.Actor) {
	s.logger.Info("vote action dispatched", "type", action.Type().String(), "initiator", initiator.ID)
	switch a := action.(type) {
	case vote.Kick:
		if _, ok := s.roster.Get(a.Subject); !ok {
			s.logger.Info("vote kick target already left", "subject", a.Subject)
			return
		}
		s.kick(model.Actor{ID: a.Subject, Name: a.Name}, model.Actor{}, voteKickReason)

	case vote.Pause:
		seconds := int(s.cfg.Pause.VotePauseDuration.Seconds())
		ok, reason := s.match.PauseMatchTimed(match.PauseVote, a.Team, seconds)
		if !ok {
			s.engine.Broadcast(reason)
			return
		}
		s.metrics.RecordPause(match.PauseVote)

	case vote.Restart:
		s.match.RestartMatch(model.Actor{})

	case vote.ChangeMap:
		s.match.ChangeMap(a.Map, model.Actor{})

	case vote.SideChoice:
		s.match.ChooseSide(a.Stay, initiator)
	}
}

// kick disconnects a participant. Kicks by a zero issuer (votes) are not
// audited.
func (s *Server) kick(subject, issuer model.Actor, reason string) {
	s.engine.Kick(subject.ID, reason)
	s.metrics.KickCount.Add(1)
	if issuer != (model.Actor{}) {
		s.ledger.LogAction(model.ActionKick, issuer, subject, "Reason: "+reason)
	}
	s.logger.Info("player kicked", "subject", subject.ID, "issuer", issuer.ID, "reason", reason)
}
