package drawapi

const (
	// Draw state
	NextDrawNumberEndpoint = "php/get_next_draw_number.php"
	DrawSyncEndpoint       = "php/draw_sync.php"
	UpdateDrawEndpoint     = "php/update_draw.php"
	DrawBetCountsEndpoint  = "php/get_draw_bet_counts.php"

	// Slips
	SaveBettingSlipEndpoint = "php/save_betting_slip.php"
	SlipAPIEndpoint         = "php/slip_api.php"
	ReprintSlipEndpoint     = "php/reprint_slip_api.php"
	CheckSlipExistsEndpoint = "check_slip_exists.php"

	// slip_api.php / reprint_slip_api.php actions
	ActionSaveSlip    = "save_slip"
	ActionGetSlipInfo = "get_slip_info"
	ActionReprintSlip = "reprint_slip"

	StatusSuccess = "success"
	StatusError   = "error"
)
