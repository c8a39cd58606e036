package kmain

import "github.com/mozaika228/barecore/kernel/syscall"

// demoTasks lists the entry points of the tasks started by Kmain.
var demoTasks = [...]func(){taskA, taskB}

func taskA() { runDemoTask("A", " [A exit]\n") }

func taskB() { runDemoTask("B", " [B exit]\n") }

// runDemoTask writes id and yields, once per turn, then writes exitMarker
// and exits.
func runDemoTask(id, exitMarker string) {
	for i := 0; i < iterations; i++ {
		syscall.WriteString(id)
		syscall.Yield()
	}

	syscall.WriteString(exitMarker)
	syscall.Exit()
}

// taskReturn is entered when a task entry function returns without calling
// Exit.
func taskReturn() {
	syscall.Exit()
}
