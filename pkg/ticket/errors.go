package ticket

import "errors"

var (
	ErrNoHelpersAvailable   = errors.New("no helpers available for role")
	ErrAdvancedModeRequired = errors.New("removing tickets by age requires advanced mode")
	ErrUnknownTicket        = errors.New("unknown ticket")
	ErrInvalidTicketType    = errors.New("ticket type needs a role and a label")
	ErrTooManyTicketTypes   = errors.New("console holds at most 25 ticket types")
	ErrPromptPending        = errors.New("requester is already describing a ticket")
	ErrNoRequesters         = errors.New("ticket needs at least one requester")
	ErrManagerStopped       = errors.New("manager stopped")
)
