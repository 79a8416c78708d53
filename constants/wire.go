package constants

// pdb 命令
const (
	CmdStep          = "s"
	CmdNext          = "n"
	CmdReturn        = "r"
	CmdContinue      = "c"
	CmdWhere         = "w"
	CmdDump          = "dump"
	CmdUp            = "u"
	CmdDown          = "d"
	CmdBreak         = "b"
	CmdClear         = "cl"
	CmdConfirm       = "y"
	CmdExecStatement = "!"
)

// StepCommand maps a step type to the pdb command driving it.
func StepCommand(step StepType) string {
	switch step {
	case StepIn:
		return CmdStep
	case StepOut:
		return CmdReturn
	case Continue:
		return CmdContinue
	default:
		return CmdNext
	}
}
