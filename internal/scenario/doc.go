// Package scenario drives a simulated shopfloor through its job lifecycle.
//
// A Scenario is one variant of the shopfloor (identified by its flexibility
// value) built from a layout: robots, stations, zones, process-step
// templates, and the choreography of each process step. Its state machine
// walks every queued Job through
//
//	Idle -> BeginJob -> Op[0] -> Transition[1] -> Op[1] -> ... -> Op[N-1] -> FinishJob -> Reset -> Idle
//
// pausing in OnHold while the current Job is ON_HOLD and resuming the
// interrupted state when it returns to IN_PROGRESS. When the selected
// flexibility changes, every state moves to Shutdown, which stops the
// background tasks and hands control back to the Selector.
//
// Inbound control messages (job status, flexibility selection, enable
// flag, tooltip requests) are received by the Inbox. Job status updates are
// queued and applied by the state machine once per tick, so Job state only
// ever changes on the machine's goroutine.
//
// Usage:
//
//	manager := scenario.NewManager(cfg.Simulation.ManagerID, cfg.Simulation.SelectedFlexibility, scenario.Names(file))
//	inbox := scenario.NewInbox(topics, cfg.Simulation.ManagerID, manager)
//	if err := inbox.Subscribe(ch, cfg.Simulation.TooltipRequestTopic); err != nil {
//	    return err
//	}
//	selector := scenario.NewSelector(scenario.Deps{Channel: ch, Manager: manager, Inbox: inbox, ...}, file)
//	return selector.Run(ctx)
package scenario
