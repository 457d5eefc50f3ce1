// Copyright (c) 2014 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.


//此文件将被复制到每个后端驱动程序目录中。各
//驱动程序应该有自己的驱动程序\test.go文件，该文件创建一个数据库和
//调用此文件中的testinterface函数以确保驱动程序正确
//实现接口。有关工作示例，请参阅BDB后端驱动程序。
//
//注意：将此文件复制到后端驱动程序文件夹时，包名称
//需要相应更改。

package bdb_test

import (
	"os"
	"testing"

	"github.com/libcoin/wallet/walletdb/walletdbtest"
)

//testinterface执行此数据库驱动程序的所有接口测试。
func TestInterface(t *testing.T) {
	dbPath := "interfacetest.db"
	defer os.RemoveAll(dbPath)
	walletdbtest.TestInterface(t, dbType, dbPath)
}
