// Package main implements swo_err - lists the library error codes and their descriptions.
package main

import (
	"fmt"

	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

func main() {
	fmt.Println("SWO Decoder Error Code List")
	fmt.Println()

	for code := ocsd.OK; code < ocsd.ErrLast; code++ {
		fmt.Println(common.NewError(ocsd.ErrSevInfo, code).Error())
	}

	fmt.Println()
	fmt.Println("Datapath responses")
	for resp := ocsd.RespCont; resp <= ocsd.RespFatalSysErr; resp++ {
		fmt.Printf("%2d %s\n", resp, common.DataRespStr(resp))
	}
}
