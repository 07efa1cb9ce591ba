package consensus

//
//                 (max_participants registered)
//+--------------+                              +------------+
//| Registration +----------------------------->| DeploySafe |
//+--------------+                              +-----+------+
//       ^                                            |(leader reports the Safe address)
//       |                                            v
//       |                                  +--------------------+
//       |                                  | CollectObservation |
//       |                                  +---------+----------+
//       |                                            |(+2/3 observations)
//       |(ForceTransition, new period)               v
//       |                                  +-------------------+
//       |                                  | EstimateConsensus |
//       |                                  +---------+---------+
//       |                                            |(+2/3 on one estimate)
//       |                                            v
//+------+------------+                     +------------------+
//| ConsensusReached  |<--------------------+ CollectSignature |
//+-------------------+  (+2/3 signatures)  +------------------+

//Round - 状态机的一个节点，一个period由上面的六个round组成
//	- PeriodState - period内已完成round的结果，不可变，每次切换生成新的对象
//	- baseRound - 所有round共享的部分：输入state、参数、dispatch table、logger
//	- XRound - 各自维护round内的累加器，CheckX只判断，X在判断通过后写入累加器
//	- EndBlock - 每个块结束时调用，条件满足时返回新的state和下一个round
//
//round本身不做签名校验和超时处理，这些由app.Driver和外部的timeout层负责
