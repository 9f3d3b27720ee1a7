// Package tui provides the terminal user interface for quorum's run command.
//
// The run view is driven entirely by scheduler events. It shows:
//   - Every step of the plan with its agent and live status
//   - Elapsed time per step and for the run
//   - An activity log of recent events
//   - An approval prompt when the run was started with --confirm
//
// Usage:
//
//	program, app := tui.NewRunProgram(plan, gate.SubmitResponse, cancel)
//	go tui.ForwardEvents(program, scheduler.Subscribe(64))
//	go tui.ForwardApprovals(ctx, program, gate.RequestCh())
//	go func() {
//	    result := scheduler.Execute(ctx, plan)
//	    program.Send(tui.DoneMsg{Result: result})
//	}()
//	program.Run()
//
// Users quit with 'q' or Ctrl+C, which also cancels the run.
package tui
