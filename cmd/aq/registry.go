package main

import "github.com/aq-cli/aq/internal/tool"

// buildToolRegistry registers every built-in tool (C4/C5) so the agent loop
// and any subagent it spawns have the full catalogue to draw from; plan
// mode and per-agent allow/deny lists narrow it at call time, not here.
func buildToolRegistry() *tool.Registry {
	reg := tool.NewRegistry()
	reg.MustRegister(tool.BashBuilder{})
	reg.MustRegister(tool.EditBuilder{})
	reg.MustRegister(tool.EnterPlanModeBuilder{})
	reg.MustRegister(tool.ExitPlanModeBuilder{})
	reg.MustRegister(tool.GlobBuilder{})
	reg.MustRegister(tool.GrepBuilder{})
	reg.MustRegister(tool.KillShellBuilder{})
	reg.MustRegister(tool.LsBuilder{})
	reg.MustRegister(tool.ReadBuilder{})
	reg.MustRegister(tool.SkillBuilder{})
	reg.MustRegister(tool.TaskBuilder{})
	reg.MustRegister(tool.TaskOutputBuilder{})
	reg.MustRegister(tool.TodoWriteBuilder{})
	reg.MustRegister(tool.TaskCreateBuilder{})
	reg.MustRegister(tool.TaskGetBuilder{})
	reg.MustRegister(tool.TaskListBuilder{})
	reg.MustRegister(tool.TaskUpdateBuilder{})
	reg.MustRegister(tool.WebFetchBuilder{})
	reg.MustRegister(tool.WebSearchBuilder{})
	reg.MustRegister(tool.WriteBuilder{})
	reg.MustRegister(tool.AskUserBuilder{})
	return reg
}
