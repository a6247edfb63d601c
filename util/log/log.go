package log

import (
	"cheapisdakv/util/runtime"
	"github.com/sirupsen/logrus"
)

func FnLog(msg string, args ...interface{}) {
	logrus.Infof("@%s: "+msg, append([]interface{}{runtime.GetCurFuncName(2)}, args...)...)
}

func FnErrLog(msg string, args ...interface{}) {
	logrus.Errorf("@%s: "+msg, append([]interface{}{runtime.GetCurFuncName(2)}, args...)...)
}

// Fatalf logs the fatal-to-process error classes spec.md §7 enumerates
// (allocator growth failure, a short/failed data-log write, a short/failed
// record read) and then terminates, since these mean the index and the
// log have gone inconsistent with each other.
func Fatalf(msg string, args ...interface{}) {
	logrus.Fatalf("@%s: "+msg, append([]interface{}{runtime.GetCurFuncName(2)}, args...)...)
}
