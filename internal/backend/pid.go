package backend

import "os"

func currentPID() int { return os.Getpid() }
